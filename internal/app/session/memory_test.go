package session_test

import (
	"context"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rawlink/internal/app/model"
	"rawlink/internal/app/session"
	storagemock "rawlink/internal/app/storage/mock"
)

func TestMemorySession(t *testing.T) {
	u := &model.User{
		ID:       uuid.New(),
		Email:    "vendor@example.com",
		Username: "vendor",
		Role:     model.RoleVendor,
	}

	t.Run("CreateReadRoundtrip", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		users := storagemock.NewMockUserRepository(ctrl)
		users.EXPECT().Read(gomock.Any(), u.ID).Return(u, nil)

		s := session.NewMemory("test-secret", users, session.WithIssuer("rawlink"))

		token, err := s.Create(context.Background(), u)
		require.NoError(t, err)
		require.NotEmpty(t, token)

		got, err := s.Read(context.Background(), token)
		require.NoError(t, err)
		assert.Equal(t, u.ID, got.ID)
		assert.Equal(t, u.Email, got.Email)
	})

	t.Run("GarbageTokenRejected", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		s := session.NewMemory("test-secret", storagemock.NewMockUserRepository(ctrl))

		_, err := s.Read(context.Background(), "not-a-jwt")
		assert.ErrorIs(t, err, session.ErrInvalidToken)
	})

	t.Run("ForeignSignatureRejected", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		users := storagemock.NewMockUserRepository(ctrl)

		issuer := session.NewMemory("secret-a", users)
		verifier := session.NewMemory("secret-b", users)

		token, err := issuer.Create(context.Background(), u)
		require.NoError(t, err)

		_, err = verifier.Read(context.Background(), token)
		assert.ErrorIs(t, err, session.ErrInvalidToken)
	})

	t.Run("ExpiredSessionRejected", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		users := storagemock.NewMockUserRepository(ctrl)

		s := session.NewMemory("test-secret", users, session.WithTokenLifetime(-time.Hour))

		token, err := s.Create(context.Background(), u)
		require.NoError(t, err)

		_, err = s.Read(context.Background(), token)
		assert.ErrorIs(t, err, session.ErrInvalidToken)
	})

	t.Run("UnknownSessionRejected", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		users := storagemock.NewMockUserRepository(ctrl)

		issuer := session.NewMemory("test-secret", users)
		other := session.NewMemory("test-secret", users)

		token, err := issuer.Create(context.Background(), u)
		require.NoError(t, err)

		// Same secret, but the session lives in the issuer's store only.
		_, err = other.Read(context.Background(), token)
		assert.ErrorIs(t, err, session.ErrInvalidToken)
	})
}
