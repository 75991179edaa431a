// Package docs provides generated OpenAPI documentation.
//
// Satchel API
//
//	@title			Satchel API
//	@version		1.0
//	@description	Book content indexing and search API for digitized school libraries.
//
//	@license.name	MIT
//	@license.url	https://opensource.org/licenses/MIT
//
//	@host		localhost:8080
//	@BasePath	/
//
//	@schemes	http https
package docs

//go:generate swag init -g ../cmd/satchel/serve.go -o ./swagger --parseDependency --parseInternal
