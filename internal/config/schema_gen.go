package config

import "github.com/invopop/jsonschema"

// GenerateJSONSchema generates a JSON schema for *.mcpchat.{yaml,json} files
func GenerateJSONSchema() (*jsonschema.Schema, error) {
	r := &jsonschema.Reflector{
		RequiredFromJSONSchemaTags: true,
		AllowAdditionalProperties:  false,
		DoNotReference:             false,
	}

	schema := r.Reflect(&ConfigSchema{})

	schema.Title = "mcpchat Configuration Schema"
	schema.Description = "Configuration for the mcpchat server and terminal client"

	return schema, nil
}
