// Package migrations содержит встроенные goose миграции схемы.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS

// Dir каталог миграций внутри встроенной файловой системы
const Dir = "."
