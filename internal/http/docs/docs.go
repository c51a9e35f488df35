// Package docs регистрирует описание API для Swagger UI на /docs/.
//
// swagger.json поддерживается вручную вместе с аннотациями обработчиков.
package docs

import (
	_ "embed"

	"github.com/swaggo/swag"
)

//go:embed swagger.json
var doc string

type spec struct{}

func (spec) ReadDoc() string { return doc }

func init() {
	swag.Register(swag.Name, spec{})
}
