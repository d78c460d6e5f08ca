package turn

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDetectImageIntent(t *testing.T) {
	tests := []struct {
		text   string
		prompt string
		ok     bool
	}{
		{"帮我画一张夕阳的图片", "夕阳", true},
		{"画个猫", "猫", true},
		{"给我生成一张星空的壁纸", "星空", true},
		{"draw me a picture of a sunset", "sunset", true},
		{"今天的夕阳真好看", "", false},
		{"不用画图了", "", false},
		{"别给我生成图片", "", false},
		{"你好呀", "", false},
		{"", "", false},
	}

	for _, tt := range tests {
		prompt, ok := detectImageIntent(tt.text)
		assert.Equal(t, tt.ok, ok, "text %q", tt.text)
		if tt.ok {
			assert.Equal(t, tt.prompt, prompt, "text %q", tt.text)
		}
	}
}
