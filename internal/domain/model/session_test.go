package model_test

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/ericfisherdev/diasync/internal/domain/model"
)

func TestSession_IsValid(t *testing.T) {
	tests := []struct {
		name  string
		token string
		want  bool
	}{
		{name: "empty", token: "", want: false},
		{name: "zero sentinel", token: model.ZeroSentinel, want: false},
		{name: "uuid.Nil string", token: uuid.Nil.String(), want: false},
		{name: "real token", token: "a5f0ffd0-1a7c-4c4e-9b8c-6d2a1a6f5e01", want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := model.Session{Token: tt.token}
			assert.Equal(t, tt.want, s.IsValid())
			assert.Equal(t, tt.token != model.ZeroSentinel && tt.token != "", s.IsValid())
		})
	}
}

func TestSession_IsValid_RandomTokens(t *testing.T) {
	for range 50 {
		s := model.Session{Token: uuid.NewString()}
		assert.True(t, s.IsValid())
	}
}
