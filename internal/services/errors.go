package services

import (
	"errors"
	"net/http"
)

// Catégories d'erreurs métier, mappées sur les codes HTTP par les handlers.
const (
	KindValidation = "validation"
	KindNotFound   = "not_found"
	KindForbidden  = "forbidden"
	KindConflict   = "conflict"
	KindGateway    = "gateway"
	KindInternal   = "internal"
)

// Error est l'erreur typée renvoyée par la couche services. Le handler ne
// regarde que Kind ; Message est destiné au client, Err à la journalisation.
type Error struct {
	Kind    string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

func Invalid(msg string) *Error   { return &Error{Kind: KindValidation, Message: msg} }
func NotFound(msg string) *Error  { return &Error{Kind: KindNotFound, Message: msg} }
func Forbidden(msg string) *Error { return &Error{Kind: KindForbidden, Message: msg} }
func Conflict(msg string) *Error  { return &Error{Kind: KindConflict, Message: msg} }

func GatewayFailure(msg string, err error) *Error {
	return &Error{Kind: KindGateway, Message: msg, Err: err}
}

func Internal(err error) *Error {
	return &Error{Kind: KindInternal, Message: "erreur interne", Err: err}
}

// KindOf extrait la catégorie d'une erreur, KindInternal par défaut.
func KindOf(err error) string {
	var se *Error
	if errors.As(err, &se) {
		return se.Kind
	}
	return KindInternal
}

// Message retourne le message destiné au client. Les erreurs internes ne
// laissent jamais fuiter leur cause.
func Message(err error) string {
	var se *Error
	if errors.As(err, &se) {
		return se.Message
	}
	return "erreur interne"
}

// HTTPStatus traduit une erreur de service en code HTTP.
func HTTPStatus(err error) int {
	switch KindOf(err) {
	case KindValidation:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindForbidden:
		return http.StatusForbidden
	case KindConflict:
		return http.StatusConflict
	case KindGateway:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
