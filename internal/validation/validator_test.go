package validation_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/listenupapp/moments-pipeline/internal/domain"
	domainerrors "github.com/listenupapp/moments-pipeline/internal/errors"
	"github.com/listenupapp/moments-pipeline/internal/validation"
)

func validInterpretation() domain.Interpretation {
	return domain.Interpretation{
		Book:          "Frankenstein",
		PassageRef:    "passage_1",
		CharacterID:   1,
		CharacterName: "Emma Chen",
		Text:          "He says catastrophe before anything bad happens.",
		WordCount:     7,
	}
}

func TestValidator_ValidateSuccess(t *testing.T) {
	v := validation.New()

	assert.NoError(t, v.Validate(validInterpretation()))
	assert.NoError(t, v.Validate(domain.Passage{Number: "1", BookTitle: "Frankenstein", Text: "It was on a dreary night of November."}))
	assert.NoError(t, v.Validate(domain.ReaderProfile{Name: "Emma Chen"}))
}

func TestValidator_ValidateErrors(t *testing.T) {
	v := validation.New()

	tests := []struct {
		name      string
		row       any
		wantField string
		wantMsg   string
	}{
		{
			name: "missing character name",
			row: func() domain.Interpretation {
				r := validInterpretation()
				r.CharacterName = ""
				return r
			}(),
			wantField: "character_name",
			wantMsg:   "is required",
		},
		{
			name: "blank interpretation",
			row: func() domain.Interpretation {
				r := validInterpretation()
				r.Text = "   \n"
				return r
			}(),
			wantField: "interpretation",
			wantMsg:   "must not be blank",
		},
		{
			name: "negative word count",
			row: func() domain.Interpretation {
				r := validInterpretation()
				r.WordCount = -1
				return r
			}(),
			wantField: "word_count",
			wantMsg:   "must be greater than or equal to 0",
		},
		{
			name:      "passage without book",
			row:       domain.Passage{Number: "1", Text: "Some text here."},
			wantField: "book_title",
			wantMsg:   "is required",
		},
		{
			name:      "profile without name",
			row:       domain.ReaderProfile{Gender: "F"},
			wantField: "Name",
			wantMsg:   "is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.Validate(tt.row)
			require.Error(t, err)
			assert.True(t, errors.Is(err, domainerrors.ErrValidation))

			var domainErr *domainerrors.Error
			require.True(t, errors.As(err, &domainErr))
			details, ok := domainErr.Details.(map[string]string)
			require.True(t, ok)
			assert.Equal(t, tt.wantMsg, details[tt.wantField])
			assert.Contains(t, err.Error(), tt.wantField+" "+tt.wantMsg)
		})
	}
}

func TestValidator_MultipleErrorsAreSorted(t *testing.T) {
	err := validation.New().Validate(domain.Interpretation{})
	require.Error(t, err)
	assert.Equal(t,
		"invalid row: book is required; character_name is required; interpretation must not be blank; passage_id is required",
		err.Error())
}

func TestNew_RegistersNotBlank(t *testing.T) {
	var v *validation.Validator
	require.NotPanics(t, func() { v = validation.New() })

	tests := []struct {
		name    string
		text    string
		wantErr bool
	}{
		{name: "tabs and newlines", text: "\t\n", wantErr: true},
		{name: "non-breaking space only", text: " ", wantErr: true},
		{name: "padded text", text: "  fine  ", wantErr: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			row := validInterpretation()
			row.Text = tt.text
			err := v.Validate(row)
			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), "interpretation must not be blank")
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestValidator_NonStructIsInternal(t *testing.T) {
	err := validation.New().Validate(nil)
	require.Error(t, err)
	assert.Equal(t, domainerrors.CodeInternal, domainerrors.CodeOf(err))
}
