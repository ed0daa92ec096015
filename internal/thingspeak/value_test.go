package thingspeak

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValueUnmarshal(t *testing.T) {
	t.Parallel()

	var rec FeedRecord
	err := json.Unmarshal([]byte(`{
		"entry_id": 7,
		"created_at": "2024-05-01T03:04:05Z",
		"field1": "1",
		"field2": 123.5,
		"field3": null,
		"field4": " ",
		"field5": true
	}`), &rec)
	require.NoError(t, err)

	assert.Equal(t, int64(7), rec.EntryID)
	assert.Equal(t, "1", rec.Field1.String())
	assert.Equal(t, "123.5", rec.Field2.String())
	assert.True(t, rec.Field3.IsEmpty(), "null")
	assert.True(t, rec.Field4.IsEmpty(), "blank")
	assert.Equal(t, "1", rec.Field5.String())

	var missing FeedRecord
	require.NoError(t, json.Unmarshal([]byte(`{"entry_id":1}`), &missing))
	assert.Nil(t, missing.Field2)
	assert.True(t, missing.Field2.IsEmpty(), "nil value is empty")
}

func TestValueRejectsObjects(t *testing.T) {
	t.Parallel()
	var v Value
	require.Error(t, json.Unmarshal([]byte(`{"a":1}`), &v))
}

func TestValueCoercion(t *testing.T) {
	t.Parallel()

	tests := []struct {
		raw       *Value
		wantInt   int
		intErr    bool
		wantFloat float64
		floatErr  bool
	}{
		{raw: nil},
		{raw: &Value{}},
		{raw: NewValue(""), wantInt: 0},
		{raw: NewValue("3"), wantInt: 3, wantFloat: 3},
		{raw: NewValue(" 42 "), wantInt: 42, wantFloat: 42},
		{raw: NewValue("3.0"), wantInt: 3, wantFloat: 3},
		{raw: NewValue("2.5"), intErr: true, wantFloat: 2.5},
		{raw: NewValue("abc"), intErr: true, floatErr: true},
		{raw: NewValue("NaN"), intErr: true, floatErr: true},
		{raw: NewValue("-1"), wantInt: -1, wantFloat: -1},
	}
	for _, tt := range tests {
		name := tt.raw.String()
		i, err := tt.raw.Int()
		if tt.intErr {
			assert.Error(t, err, "Int(%q)", name)
		} else {
			require.NoError(t, err, "Int(%q)", name)
			assert.Equal(t, tt.wantInt, i)
		}

		f, err := tt.raw.Float()
		if tt.floatErr {
			assert.Error(t, err, "Float(%q)", name)
		} else {
			require.NoError(t, err, "Float(%q)", name)
			assert.InDelta(t, tt.wantFloat, f, 1e-9)
		}
	}
}

func TestValueMarshal(t *testing.T) {
	t.Parallel()
	rec := FeedRecord{EntryID: 1, Field1: NewValue("1")}
	b, err := json.Marshal(rec)
	require.NoError(t, err)
	assert.JSONEq(t, `{"entry_id":1,"created_at":"","field1":"1","field2":null,"field3":null,"field4":null,"field5":null}`, string(b))
}
