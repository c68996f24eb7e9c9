// internal/model/change_test.go
package model

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// The wire format must keep three states apart: a field that is absent, an
// explicit null (a clear), and a value. The merge semantics depend on it.
func TestPendingChange_TriStateJSON(t *testing.T) {
	t.Run("absent field stays unset", func(t *testing.T) {
		var pc PendingChange
		require.NoError(t, json.Unmarshal([]byte(`{"dismissed": true}`), &pc))

		assert.False(t, pc.Priority.Set)
		require.True(t, pc.Dismissed.Set)
		require.NotNil(t, pc.Dismissed.Value)
		assert.True(t, *pc.Dismissed.Value)
	})

	t.Run("explicit null is a clear", func(t *testing.T) {
		var pc PendingChange
		require.NoError(t, json.Unmarshal([]byte(`{"priority": null}`), &pc))

		assert.True(t, pc.Priority.Set)
		assert.Nil(t, pc.Priority.Value)
	})

	t.Run("marshalling drops absent fields and keeps clears", func(t *testing.T) {
		pc := PendingChange{
			Priority:  Clear[int16](),
			Dismissed: Some(true),
		}
		b, err := json.Marshal(pc)
		require.NoError(t, err)

		assert.JSONEq(t, `{"priority": null, "dismissed": true}`, string(b))
	})

	t.Run("round trip preserves the delta shape", func(t *testing.T) {
		pc := PendingChange{
			Labels: SetDelta{Add: []string{"bug"}, Remove: []string{"old"}},
			State:  Some(IssueClosed),
		}
		b, err := json.Marshal(pc)
		require.NoError(t, err)

		var back PendingChange
		require.NoError(t, json.Unmarshal(b, &back))
		assert.Equal(t, pc.Labels, back.Labels)
		require.NotNil(t, back.State.Value)
		assert.Equal(t, IssueClosed, *back.State.Value)
	})
}

func TestApplySetChange(t *testing.T) {
	t.Run("removes then adds, deduplicated", func(t *testing.T) {
		got := ApplySetChange([]string{"wontfix", "bug"}, []string{"bug", "urgent"}, []string{"wontfix"})
		assert.Equal(t, []string{"bug", "urgent"}, got)
	})

	t.Run("empty delta is the identity", func(t *testing.T) {
		got := ApplySetChange([]string{"bug"}, nil, nil)
		assert.Equal(t, []string{"bug"}, got)
	})
}
