package entity

import (
	"strings"

	"github.com/google/uuid"
)

// ProvisionalPrefix prefijo de los identificadores que genera el cliente antes de sincronizar.
const ProvisionalPrefix = "loc-"

// movementNamespace espacio UUID v5 para los ids que asigna la autoridad.
var movementNamespace = uuid.MustParse("6f1c2a1e-9d4b-5b7e-8a60-3c2f0d5e7a11")

// IsProvisionalID indica un id generado localmente ("loc-...").
func IsProvisionalID(id string) bool {
	return strings.HasPrefix(id, ProvisionalPrefix)
}

// AuthoritativeID id definitivo de un movimiento. Los provisionales se convierten de forma
// determinista: la autoridad y el cliente que lo originó calculan el mismo valor.
// Un id vacío recibe uno aleatorio; cualquier otro se conserva.
func AuthoritativeID(id string) string {
	switch {
	case id == "":
		return uuid.NewString()
	case IsProvisionalID(id):
		return uuid.NewSHA1(movementNamespace, []byte(id)).String()
	default:
		return id
	}
}
