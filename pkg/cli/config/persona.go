package config

import (
	"os"
	"strings"

	"github.com/m-mizutani/goerr/v2"
	"github.com/pelletier/go-toml/v2"
	"github.com/urfave/cli/v3"
)

// Persona holds CLI flags for the assistant persona configuration
type Persona struct {
	path     string
	timezone string
}

// personaFile is the TOML schema for a persona file.
type personaFile struct {
	Name         string   `toml:"name"`
	Voice        string   `toml:"voice"`
	Instructions []string `toml:"instructions"`
}

// Validate checks required persona fields.
func (p *personaFile) Validate() error {
	if p.Name == "" {
		return goerr.New("persona name is required")
	}
	return nil
}

// Flags returns CLI flags for persona configuration
func (p *Persona) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "persona-file",
			Usage:       "Path to a TOML persona file shaping the assistant's voice",
			Sources:     cli.EnvVars("INKWELL_PERSONA_FILE"),
			Destination: &p.path,
		},
		&cli.StringFlag{
			Name:        "timezone",
			Usage:       "IANA timezone for schedule suggestions and slot resolution",
			Value:       "UTC",
			Sources:     cli.EnvVars("INKWELL_TIMEZONE"),
			Destination: &p.timezone,
		},
	}
}

// Timezone returns the configured timezone name.
func (p *Persona) Timezone() string {
	return p.timezone
}

// Configure loads the persona file and renders it as a system prompt
// fragment. An unset path yields an empty persona.
func (p *Persona) Configure() (string, error) {
	if p.path == "" {
		return "", nil
	}

	// #nosec G304 - path is expected to be provided by CLI argument
	data, err := os.ReadFile(p.path)
	if err != nil {
		return "", goerr.Wrap(err, "failed to read persona file", goerr.V("path", p.path))
	}

	var file personaFile
	if err := toml.Unmarshal(data, &file); err != nil {
		return "", goerr.Wrap(err, "failed to parse persona TOML", goerr.V("path", p.path))
	}
	if err := file.Validate(); err != nil {
		return "", goerr.Wrap(err, "persona validation failed", goerr.V("path", p.path))
	}

	var sb strings.Builder
	sb.WriteString("You are " + file.Name + ".")
	if file.Voice != "" {
		sb.WriteString(" " + file.Voice)
	}
	for _, instruction := range file.Instructions {
		sb.WriteString("\n- " + instruction)
	}
	return sb.String(), nil
}
