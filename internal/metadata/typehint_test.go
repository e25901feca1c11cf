package metadata

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseTypeHint(t *testing.T) {
	dateTime := `DateTime<"2006-01-02T15:04:05.000Z07:00">`

	tests := []struct {
		hint string
		want string
	}{
		{`\DateTime`, dateTime},
		{`\DateTime|null`, dateTime},
		{`null|\DateTime`, dateTime},
		{`DateTime | null`, dateTime},
		{`DateTimeImmutable`, dateTime},
		{`time.Time`, dateTime},
		{`\Foo|null`, `Foo`},
		{`null|\Foo`, `Foo`},
		{`Foo | null`, `Foo`},
		{`\Vendor\Blog\Author`, `Vendor\Blog\Author`},
		{`Vendor\Blog\Author`, `Vendor\Blog\Author`},
		{`string`, `string`},
		{`string And here, in same lane as var annotation, is description for the property`, `string`},
		{`boolean`, `boolean`},
		{`bool`, `bool`},
		{`int`, `int`},
		{`integer`, `integer`},
		{`double`, `double`},
		{`float`, `float`},
		{`array<string>`, `array<string>`},
		{`array<string> And some additional description here`, `array<string>`},
		{`array<\Vendor\Blog\Tag>`, `array<Vendor\Blog\Tag>`},
		{`string[]`, `array<string>`},
		{`string[] with trailing description text`, `array<string>`},
		{`[]`, `array`},
		{`array`, `array`},
		{`\Vendor\Blog\Tag[]`, `array<Vendor\Blog\Tag>`},
		{`Vendor\Blog\Tag[] Additional description goes here`, `array<Vendor\Blog\Tag>`},
		{`\Vendor\Persistence\ObjectStorage<\Vendor\Blog\Tag>`, `array<Vendor\Blog\Tag>`},
		{`ObjectStorage<Tag>`, `array<Tag>`},
		{`LazyObjectStorage<\Tag>|null`, `array<Tag>`},
		{`Money<EUR>`, `Money<EUR>`},
		{``, ``},
	}

	for _, tt := range tests {
		t.Run(tt.hint, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseTypeHint(tt.hint))
		})
	}
}

func TestFormatDescriptor(t *testing.T) {
	assert.Equal(t, `Image<"800","600">`, FormatDescriptor("Image", 800, 600))
	assert.Equal(t, `Image<"800c","">`, FormatDescriptor("Image", "800c", nil))
	assert.Equal(t, `Quote<"say \"hi\"">`, FormatDescriptor("Quote", `say "hi"`))
	assert.Equal(t, `Empty<>`, FormatDescriptor("Empty"))
}

func TestParseDescriptor(t *testing.T) {
	tests := []struct {
		in         string
		wantName   string
		wantParams []string
	}{
		{`DateTime<"2006-01-02">`, "DateTime", []string{"2006-01-02"}},
		{`Image<"800c","600">`, "Image", []string{"800c", "600"}},
		{`Image<"","600">`, "Image", []string{"", "600"}},
		{`array<string>`, "array", []string{"string"}},
		{`Quote<"say \"hi\"">`, "Quote", []string{`say "hi"`}},
		{`string`, "string", nil},
	}
	for _, tt := range tests {
		name, params := ParseDescriptor(tt.in)
		assert.Equal(t, tt.wantName, name, tt.in)
		assert.Equal(t, tt.wantParams, params, tt.in)
	}
}
