// Package validation provides input validation for filterkit configuration
// and chain arguments.
//
// Struct tag validation uses the validator library and reports fields by
// their config key:
//
//	type AdminConfig struct {
//	    Addr string `mapstructure:"addr" validate:"required,hostname_port"`
//	}
//	err := validation.Validate(cfg)
//
// Programmatic validation collects errors:
//
//	err := validation.New().
//	    Required("name", name).
//	    MaxLength("name", name, 128).
//	    Err()
package validation
