package sri_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/jhoicas/cobros-sri/pkg/sri"
)

func TestContainsInProcessMarker(t *testing.T) {
	cases := map[string]bool{
		"[ERROR] CLAVE DE ACCESO EN PROCESAMIENTO [ID:70]": true,
		"error ... id:70 ...":                               true,
		"Comprobante en procesamiento":                      true,
		"[ERROR] ERROR SECUENCIAL REGISTRADO [ID:45]":       false,
		"":                                                  false,
	}
	for text, want := range cases {
		assert.Equal(t, want, sri.ContainsInProcessMarker(text), text)
	}
}

// El marcador prevalece aunque el resto de la respuesta parezca un rechazo.
func TestSubmissionResult_StillProcessingEnCualquierCampo(t *testing.T) {
	r := sri.SubmissionResult{
		State:    sri.SubmissionReturned,
		Messages: []string{"[ERROR] DEVUELTA (rechazo aparente)"},
		Raw:      "<mensaje><identificador>70</identificador><mensaje>CLAVE DE ACCESO EN PROCESAMIENTO</mensaje></mensaje>",
	}
	assert.True(t, r.StillProcessing())

	r = sri.SubmissionResult{
		State:    sri.SubmissionReturned,
		Messages: []string{"[ERROR] ARCHIVO NO CUMPLE ESTRUCTURA XML [ID:35]"},
	}
	assert.False(t, r.StillProcessing())
}

func TestSubmissionResult_MensajesUnidos(t *testing.T) {
	r := sri.SubmissionResult{Messages: []string{"a", "b"}}
	assert.Equal(t, "a | b", r.Message())
	assert.True(t, sri.SubmissionResult{Messages: []string{"[ERROR] CLAVE ACCESO REGISTRADA [ID:43]"}}.AlreadyRegistered())
}

func TestFormatMessage(t *testing.T) {
	assert.Equal(t, "[ERROR] CLAVE DE ACCESO EN PROCESAMIENTO (reintente) [ID:70]",
		sri.FormatMessage("ERROR", "CLAVE DE ACCESO EN PROCESAMIENTO", "reintente", "70"))
	assert.Equal(t, "[INFO] Sin mensaje", sri.FormatMessage("", "", "", ""))
}

func TestSigningError_ErrorsIs(t *testing.T) {
	err := sri.NewSigningError(sri.ErrSigningTimeout, "25s", nil)
	assert.True(t, errors.Is(err, sri.ErrSigningTimeout))
	assert.False(t, errors.Is(err, sri.ErrCertificateCorrupt))
	assert.Contains(t, err.Error(), "25s")
}
