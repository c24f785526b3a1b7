// Package api встраивает OpenAPI-описание сервиса в бинарник.
package api

import _ "embed"

//go:embed openapi.yaml
var OpenAPI []byte
