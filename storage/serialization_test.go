package storage

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/poiesic/classgraph/core"
)

func declaredUsage(t *testing.T) *core.Entity {
	t.Helper()
	entityCtx := core.NewContext()
	e, err := entityCtx.DeclareEntity(core.NewUsage("p1", "a1", core.TagAudio, core.Seconds(42.5)))
	require.NoError(t, err)
	return e
}

func TestMarshalUnmarshalEntity(t *testing.T) {
	original := declaredUsage(t)

	data, err := MarshalEntity(original)
	require.NoError(t, err)
	require.NotEmpty(t, data)

	decoded, err := UnmarshalEntity(data)
	require.NoError(t, err)

	assert.Equal(t, original.ID(), decoded.ID())
	assert.Equal(t, original.Tag(), decoded.Tag())
	assert.True(t, original.Meta.CreatedAt.Equal(decoded.Meta.CreatedAt))
	assert.Equal(t, original.Props, decoded.Props)
}

func TestMarshalEntityRejectsDraft(t *testing.T) {
	_, err := MarshalEntity(core.NewText("hola", "es"))
	assert.ErrorIs(t, err, ErrDraftEntity)
}

func TestUnmarshalEntityRejectsUnknownTag(t *testing.T) {
	env := Envelope{
		Tag:       "mystery",
		Version:   1,
		ID:        "x",
		CreatedAt: time.Now().UnixNano(),
		UpdatedAt: time.Now().UnixNano(),
		Props:     "{}",
	}
	buf := make([]byte, EnvelopeMUS.Size(env))
	EnvelopeMUS.Marshal(env, buf)

	_, err := UnmarshalEntity(buf)
	assert.ErrorIs(t, err, core.ErrUnknownTag)
}

func TestUnmarshalEntityTruncated(t *testing.T) {
	data, err := MarshalEntity(declaredUsage(t))
	require.NoError(t, err)

	_, err = UnmarshalEntity(data[:3])
	assert.Error(t, err)
}

func TestCloneEntityDoesNotAlias(t *testing.T) {
	original := declaredUsage(t)

	clone, err := CloneEntity(original)
	require.NoError(t, err)
	require.NotSame(t, original, clone)
	assert.Equal(t, original.Props, clone.Props)

	clone.Props.(*core.UsageProps).Target = "other"
	assert.Equal(t, core.ID("a1"), original.Props.(*core.UsageProps).Target)
}

func TestMarshalUnmarshalTag(t *testing.T) {
	data := MarshalTag(core.TagGranted)
	tag, err := UnmarshalTag(data)
	require.NoError(t, err)
	assert.Equal(t, core.TagGranted, tag)
}
