package errno

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDecode(t *testing.T) {
	code, msg := Decode(nil)
	assert.Equal(t, OK.Code, code)
	assert.Equal(t, OK.Message, msg)

	code, msg = Decode(ErrNotConnected)
	assert.Equal(t, ErrNotConnected.Code, code)
	assert.Equal(t, ErrNotConnected.Message, msg)

	wrapped := fmt.Errorf("execute buy: %w", ErrInsufficientBalance)
	code, msg = Decode(wrapped)
	assert.Equal(t, ErrInsufficientBalance.Code, code)
	assert.Equal(t, "execute buy: Insufficient balance", msg)

	p := ErrBind
	code, _ = Decode(&p)
	assert.Equal(t, ErrBind.Code, code)

	code, msg = Decode(errors.New("boom"))
	assert.Equal(t, InternalServerError.Code, code)
	assert.Equal(t, "boom", msg)
}

func TestIsMatchesCode(t *testing.T) {
	custom := ErrTransactionRejected.WithMessage("user closed the popup")
	err := fmt.Errorf("send: %w", custom)

	assert.True(t, errors.Is(err, ErrTransactionRejected))
	assert.False(t, errors.Is(err, ErrBroadcastFailed))
	assert.Equal(t, "send: user closed the popup", err.Error())
}
