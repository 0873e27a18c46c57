//go:build !unix

package loop

import (
	stderrors "errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/bebsworthy/testapps/internal/errors"
)

func TestBindSignal_Unsupported(t *testing.T) {
	l := New()
	defer l.Close()

	assert.False(t, SignalsSupported())
	err := l.BindSignal(Terminate, func(SignalKind) {})
	assert.True(t, stderrors.Is(err, errors.ErrSignalUnsupported))
}
