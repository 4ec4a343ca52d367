package history

import (
	"bytes"
	"slices"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLog_EmptyLog(t *testing.T) {
	l := NewLog()

	_, ok := l.Latest()
	assert.False(t, ok)
	assert.Equal(t, 0, l.Len())
	assert.Empty(t, slices.Collect(l.All()))
}

func TestLog_AllIsNewestFirstAndRestartable(t *testing.T) {
	l := NewLog()
	l.Append(Exchange{Question: "q1", Answer: "a1"})
	l.Append(Exchange{Question: "q2", Answer: "a2"})
	l.Append(Exchange{Question: "q3", Answer: "a3"})

	want := []string{"q3", "q2", "q1"}
	assert.Equal(t, want, slices.Collect(l.Questions()))
	assert.Equal(t, want, slices.Collect(l.Questions()))

	latest, ok := l.Latest()
	require.True(t, ok)
	assert.Equal(t, Exchange{Question: "q3", Answer: "a3"}, latest)
}

func TestLog_EarlyBreak(t *testing.T) {
	l := NewLog()
	l.Append(Exchange{Question: "q1"})
	l.Append(Exchange{Question: "q2"})

	var seen []string
	for ex := range l.All() {
		seen = append(seen, ex.Question)
		break
	}
	assert.Equal(t, []string{"q2"}, seen)
}

func TestLog_Clear(t *testing.T) {
	l := NewLog()
	l.Append(Exchange{Question: "q", Answer: "a"})

	it := l.All()
	l.Clear()

	assert.Equal(t, 0, l.Len())
	_, ok := l.Latest()
	assert.False(t, ok)
	assert.Empty(t, slices.Collect(it))
}

func TestLog_Search(t *testing.T) {
	l := NewLog()
	l.Append(Exchange{Question: "How do I use VLOOKUP?"})
	l.Append(Exchange{Question: "Write a SQL join"})
	l.Append(Exchange{Question: "vlookup vs xlookup"})

	var got []string
	for ex := range l.Search("  VLOOKUP ") {
		got = append(got, ex.Question)
	}
	assert.Equal(t, []string{"vlookup vs xlookup", "How do I use VLOOKUP?"}, got)
	assert.Len(t, slices.Collect(l.Search("")), 3)
}

func TestLog_MirrorCalledPerAppend(t *testing.T) {
	var mirrored []Exchange
	l := NewLog(WithMirror(func(ex Exchange) { mirrored = append(mirrored, ex) }))

	l.Append(Exchange{Question: "q1", Answer: "a1"})
	l.Append(Exchange{Question: "q2", Answer: "a2"})

	assert.Equal(t, l.Exchanges(), mirrored)
}

func TestLog_ConcurrentAppendAndRead(t *testing.T) {
	l := NewLog()
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				l.Append(Exchange{Question: "q"})
			}
		}()
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				for range l.All() {
				}
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 200, l.Len())
}

func TestExportCSV_RoundTrip(t *testing.T) {
	l := NewLog()
	l.Append(Exchange{Question: "plain", Answer: "answer"})
	l.Append(Exchange{Question: "with, comma", Answer: "has \"quotes\""})
	l.Append(Exchange{Question: "multi\nline", Answer: "line1\nline2,\n\"end\""})
	l.Append(Exchange{Question: "typed\r\nin a textarea", Answer: "line1\r\nline2\rline3"})

	data, err := l.ExportCSV()
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(data, []byte("Question,Answer\n")))

	parsed, err := ReadCSV(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, l.Exchanges(), parsed)
}

func TestLog_AppendNormalizesLineBreaks(t *testing.T) {
	var mirrored []Exchange
	l := NewLog(WithMirror(func(ex Exchange) { mirrored = append(mirrored, ex) }))
	l.Append(Exchange{Question: "a\r\nb", Answer: "c\rd\r\n"})

	want := Exchange{Question: "a\nb", Answer: "c\nd\n"}
	latest, ok := l.Latest()
	require.True(t, ok)
	assert.Equal(t, want, latest)
	assert.Equal(t, []Exchange{want}, mirrored)

	data, err := l.ExportCSV()
	require.NoError(t, err)
	parsed, err := ReadCSV(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, []Exchange{want}, parsed)
}

func TestExportCSV_EmptyLogIsHeaderOnly(t *testing.T) {
	data, err := NewLog().ExportCSV()
	require.NoError(t, err)
	assert.Equal(t, "Question,Answer\n", string(data))
}

func TestReadCSV_RejectsWrongShape(t *testing.T) {
	_, err := ReadCSV(bytes.NewBufferString("Question,Answer\nonly-one-field\n"))
	assert.Error(t, err)
}
