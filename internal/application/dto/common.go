package dto

// ErrorResponse cuerpo de error HTTP. Code es estable para los clientes; Message es para personas.
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
