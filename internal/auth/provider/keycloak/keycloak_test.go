package keycloak

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPublicAuthURL(t *testing.T) {
	assert.Equal(t,
		"http://localhost:8081/realms/shop/protocol/openid-connect/auth",
		publicAuthURL("http://localhost:8081/", "http://keycloak:8080/realms/shop"),
	)
	assert.Equal(t,
		"https://id.example.com/realms/storefront/protocol/openid-connect/auth",
		publicAuthURL("https://id.example.com", "https://internal/"),
	)
}
