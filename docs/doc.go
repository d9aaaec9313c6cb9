// Package docs provides generated OpenAPI documentation.
//
// Rapor API
//
//	@title			Rapor API
//	@version		1.0
//	@description	Report-card OCR: recognize uploaded PDFs and images and extract per-subject scores.
//
//	@contact.name	API Support
//	@contact.url	https://github.com/jackzampolin/rapor
//
//	@license.name	MIT
//	@license.url	https://opensource.org/licenses/MIT
//
//	@host		localhost:8080
//	@BasePath	/
//
//	@schemes	http
package docs

//go:generate swag init -g ../cmd/rapor/serve.go -o ./swagger --outputTypes json --parseDependency --parseInternal
