// Package templates embeds the HTML documents served or rendered by the service.
package templates

import _ "embed"

//go:embed certificate.html
var Certificate string

//go:embed verify.html
var VerifyPage []byte
