// Package errorcatalog resolves stable error codes into human-readable
// templates.
//
// The catalog is a plain value handed to the components that need it; there
// is no process-wide instance. Defaults ship in code and a YAML overlay can
// replace individual templates per deployment.
package errorcatalog

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"monedero/internal/constraint"
	dErrors "monedero/pkg/domain-errors"
)

// Template is the display form of one error code.
type Template struct {
	Title       string `yaml:"title"`
	Description string `yaml:"description"`
}

// Entry is one rendered failure: the code, its resolved template and the
// dynamic parameters collected when the error was raised.
type Entry struct {
	Code        string         `json:"code"`
	Title       string         `json:"title"`
	Description string         `json:"description"`
	Params      map[string]any `json:"params,omitempty"`
}

// Catalog maps codes to templates. The zero value is unusable; construct via
// Default or Load.
type Catalog struct {
	templates map[string]Template
}

// Default returns the built-in catalog covering every code the core emits.
func Default() Catalog {
	templates := map[string]Template{
		string(dErrors.CodeValidation): {
			Title:       "Datos inválidos",
			Description: "Uno o más campos no cumplen las reglas de validación.",
		},
		string(dErrors.CodeNotFound): {
			Title:       "Recurso no encontrado",
			Description: "El recurso solicitado no existe.",
		},
		string(dErrors.CodeInvalidState): {
			Title:       "Operación no permitida",
			Description: "El recurso no está en el estado requerido para esta operación.",
		},
		string(dErrors.CodeConflict): {
			Title:       "Conflicto de versión",
			Description: "El recurso fue modificado por otra operación; vuelva a consultarlo e intente de nuevo.",
		},
		string(dErrors.CodeDuplicate): {
			Title:       "Registro duplicado",
			Description: "El valor ya está registrado para otro usuario.",
		},
		string(dErrors.CodeExpired): {
			Title:       "Recurso vencido",
			Description: "El recurso superó su ventana de validez.",
		},
		string(dErrors.CodeInvalidInput): {
			Title:       "Entrada inválida",
			Description: "La solicitud contiene valores con formato incorrecto.",
		},
		string(dErrors.CodeInvariantViolation): {
			Title:       "Operación inválida",
			Description: "La operación viola una regla del dominio.",
		},
		string(dErrors.CodeUnauthorized): {
			Title:       "No autorizado",
			Description: "Las credenciales proporcionadas no son válidas.",
		},
		string(dErrors.CodeLocked): {
			Title:       "Recurso bloqueado",
			Description: "Demasiados intentos fallidos; intente de nuevo más tarde.",
		},
		string(dErrors.CodeInternal): {
			Title:       "Error técnico",
			Description: "Ocurrió un error inesperado; intente de nuevo más tarde.",
		},

		string(constraint.RequiredMissing): {
			Title:       "Campo requerido",
			Description: "El campo {field} es obligatorio.",
		},
		string(constraint.LengthOutOfRange): {
			Title:       "Longitud fuera de rango",
			Description: "El campo {field} debe tener entre {min} y {max} caracteres.",
		},
		string(constraint.PatternMismatch): {
			Title:       "Formato incorrecto",
			Description: "El campo {field} no cumple el formato esperado.",
		},
		string(constraint.CurrencyInvalid): {
			Title:       "Moneda inválida",
			Description: "El campo {field} debe ser un código de moneda ISO 4217.",
		},
		string(constraint.NegativeNotAllowed): {
			Title:       "Valor negativo no permitido",
			Description: "El campo {field} no admite valores negativos.",
		},
		string(constraint.ZeroNotAllowed): {
			Title:       "Valor cero no permitido",
			Description: "El campo {field} no admite el valor cero.",
		},
		string(constraint.PositiveNotAllowed): {
			Title:       "Valor positivo no permitido",
			Description: "El campo {field} no admite valores positivos.",
		},
		string(constraint.DecimalPrecisionInvalid): {
			Title:       "Precisión decimal inválida",
			Description: "El campo {field} admite a lo más {decimals} decimales.",
		},
		string(constraint.UnknownField): {
			Title:       "Campo desconocido",
			Description: "El campo {field} no existe en este recurso.",
		},
	}
	return Catalog{templates: templates}
}

// Load returns the default catalog with templates from the YAML file layered
// on top. The file maps code to title/description.
func Load(path string) (Catalog, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Catalog{}, fmt.Errorf("read error catalog: %w", err)
	}
	var overlay map[string]Template
	if err := yaml.Unmarshal(raw, &overlay); err != nil {
		return Catalog{}, fmt.Errorf("parse error catalog: %w", err)
	}
	c := Default()
	for code, tpl := range overlay {
		c.templates[code] = tpl
	}
	return c, nil
}

// Lookup returns the template for a code. Unknown codes fall back to the
// internal-error template so callers always get renderable prose.
func (c Catalog) Lookup(code string) Template {
	if tpl, ok := c.templates[code]; ok {
		return tpl
	}
	return c.templates[string(dErrors.CodeInternal)]
}

// Resolve renders err into the structured entry list callers receive: one
// entry per aggregated detail, or a single entry for plain domain errors.
// Non-domain errors resolve as a technical failure with no cause leaked.
func (c Catalog) Resolve(err error) []Entry {
	var domainErr *dErrors.Error
	if !errors.As(err, &domainErr) {
		tpl := c.Lookup(string(dErrors.CodeInternal))
		return []Entry{{Code: string(dErrors.CodeInternal), Title: tpl.Title, Description: tpl.Description}}
	}

	if len(domainErr.Details) == 0 {
		tpl := c.Lookup(string(domainErr.Code))
		return []Entry{{
			Code:        string(domainErr.Code),
			Title:       tpl.Title,
			Description: tpl.Description,
			Params:      domainErr.Params,
		}}
	}

	entries := make([]Entry, 0, len(domainErr.Details))
	for _, d := range domainErr.Details {
		tpl := c.Lookup(string(d.Code))
		entries = append(entries, Entry{
			Code:        string(d.Code),
			Title:       tpl.Title,
			Description: tpl.Description,
			Params:      d.Params,
		})
	}
	return entries
}
