package program

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidator_Validate(t *testing.T) {
	v := NewValidator("", "", "")

	for _, tc := range [...]struct {
		name string
		src  string
		kind DiagnosticKind
		line int
	}{
		{name: "empty", src: "", kind: DiagMissingNamespace},
		{
			name: "no directive",
			src:  "const karol = require('karol');\nclass A extends Program {}\n",
			kind: DiagMissingNamespace,
		},
		{
			name: "wrong namespace",
			src:  "// header\n\n'use namespace other.things';\nclass A extends Program {}\nrequire('karol');\n",
			kind: DiagWrongNamespace,
			line: 3,
		},
		{
			name: "no contract",
			src:  "'use namespace karol.userprograms';\nconst karol = require('karol');\nclass A {}\n",
			kind: DiagMissingContract,
		},
		{
			name: "no capability reference",
			src:  "'use namespace karol.userprograms';\nclass A extends Program {}\n",
			kind: DiagMissingReference,
		},
		{
			name: "mismatched quotes",
			src:  "'use namespace karol.userprograms\";\nconst karol = require('karol');\nclass A extends karol.Program {}\n",
			kind: DiagMissingNamespace,
		},
		{
			name: "namespace checked first",
			src:  "class A {}\n",
			kind: DiagMissingNamespace,
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			err := v.Validate(tc.src)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrValidationFailed)
			assert.NotErrorIs(t, err, ErrCompilationFailed)

			var verr *ValidationError
			require.True(t, errors.As(err, &verr))
			require.Len(t, verr.Diagnostics, 1)
			assert.Equal(t, tc.kind, verr.Kind())
			assert.Equal(t, tc.line, verr.Diagnostics[0].Line)
		})
	}
}

func TestValidator_Accepts(t *testing.T) {
	v := NewValidator("", "", "")
	for _, src := range []string{
		moverSource,
		"\"use namespace karol.userprograms\";\nconst { Program } = require(\"karol\");\nclass A extends Program { run(k) {} }\n",
		"  'use namespace   karol.userprograms  ';\nconst karol = require( 'karol' );\nclass A extends karol . Program {}\n",
	} {
		assert.NoError(t, v.Validate(src))
	}
}

func TestValidator_Custom(t *testing.T) {
	v := NewValidator("school.robots", "Task", "bot")
	assert.Equal(t, "school.robots", v.Namespace())
	assert.Equal(t, "Task", v.Contract())
	assert.Equal(t, "bot", v.Module())

	assert.NoError(t, v.Validate("'use namespace school.robots';\nconst bot = require('bot');\nclass A extends bot.Task {}\n"))

	err := v.Validate("'use namespace school.robots';\nrequire('bot');\nclass A extends Tasks {}\n")
	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, DiagMissingContract, verr.Kind())
}

func TestDiagnostic_String(t *testing.T) {
	assert.Equal(t, "boom", Diagnostic{Message: "boom"}.String())
	assert.Equal(t, "line 2: boom", Diagnostic{Message: "boom", Line: 2}.String())
	assert.Equal(t, "line 2:5: boom", Diagnostic{Message: "boom", Line: 2, Column: 5}.String())
	assert.Equal(t, "wrong-namespace", DiagWrongNamespace.String())
}
