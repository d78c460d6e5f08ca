package notify

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTemplateEvent(t *testing.T) {
	got := templateEvent("alert '{{.Keyword}}' in {{.Session}}: {{.Text}}", CrisisEvent{
		SessionID: "s1",
		Keyword:   "不想活",
		Text:      "我真的不想活了",
	})
	assert.Equal(t, "alert '不想活' in s1: 我真的不想活了", got)
}

func TestCommandNotifierRuns(t *testing.T) {
	out := filepath.Join(t.TempDir(), "alert.txt")
	n := NewCommand("printf '%s' '{{.Keyword}}' > "+out, nil)

	err := n.Notify(context.Background(), CrisisEvent{
		Keyword:   "自杀",
		Timestamp: time.Now(),
	})
	require.NoError(t, err)

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, "自杀", strings.TrimSpace(string(data)))
}

func TestCommandNotifierEmptyTemplate(t *testing.T) {
	n := NewCommand("", nil)
	assert.NoError(t, n.Notify(context.Background(), CrisisEvent{Keyword: "x"}))
}

func TestMultiReturnsFirstError(t *testing.T) {
	bad := NewCommand("exit 1", nil)
	good := NewCommand("", nil)
	err := Multi{good, bad, good}.Notify(context.Background(), CrisisEvent{Keyword: "x"})
	assert.Error(t, err)
}
