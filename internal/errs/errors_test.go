package errs

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestError_Format(t *testing.T) {
	tests := []struct {
		name string
		err  *Error
		want string
	}{
		{
			name: "plain",
			err:  Semantic("Unknown argument(s): %s", "blah"),
			want: "SEMANTIC_ERROR: Unknown argument(s): blah",
		},
		{
			name: "with indicator",
			err:  Parse("let x <^>!= n", "Expecting ="),
			want: "PARSE_ERROR: let x <^>!= n\nExpecting =",
		},
		{
			name: "with cause",
			err:  Wrap(CodeTranslation, errors.New("boom"), "while translating `n`"),
			want: "TRANSLATION_ERROR: while translating `n`: boom",
		},
		{
			name: "not implemented",
			err:  NotImplemented("order"),
			want: "NOT_IMPLEMENTED: not implemented: order",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.err.Error())
		})
	}
}

func TestIsHelpers_Wrapped(t *testing.T) {
	wrapped := fmt.Errorf("building query: %w", Semantic("bad"))

	assert.True(t, IsSemanticError(wrapped))
	assert.False(t, IsParseError(wrapped))
	assert.False(t, IsTranslationError(wrapped))
	assert.False(t, IsNotImplemented(wrapped))
	assert.False(t, IsConfigurationError(wrapped))

	assert.True(t, IsParseError(Syntax("x")))
	assert.True(t, IsTranslationError(Translation("x")))
	assert.True(t, IsNotImplemented(NotImplemented("sum")))
	assert.True(t, IsConfigurationError(Configuration("x")))
}

func TestCodeOf_NonEngineError(t *testing.T) {
	assert.Equal(t, Code(""), CodeOf(errors.New("plain")))
	assert.Equal(t, Code(""), CodeOf(nil))
}

func TestUnwrap(t *testing.T) {
	cause := errors.New("root")
	err := Wrap(CodeSemantic, cause, "outer")
	assert.ErrorIs(t, err, cause)
}
