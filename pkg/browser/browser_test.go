package browser

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSelectorValidate(t *testing.T) {
	tests := []struct {
		name    string
		sel     Selector
		wantErr bool
	}{
		{"css", CSS(".view"), false},
		{"xpath", XPath("//button"), false},
		{"empty query", Selector{By: ByCSS}, true},
		{"unknown strategy", Selector{Query: "#id", By: "jquery"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.sel.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestConditionString(t *testing.T) {
	assert.Equal(t, "present", Present.String())
	assert.Equal(t, "visible", Visible.String())
	assert.Equal(t, "clickable", Clickable.String())
	assert.Equal(t, "condition(9)", Condition(9).String())
}

func TestQueryOption(t *testing.T) {
	assert.NotNil(t, queryOption(CSS("a")))
	assert.NotNil(t, queryOption(XPath("//a")))
}

func TestFakeSessionWaits(t *testing.T) {
	ctx := context.Background()
	loaded := CSS(".view")
	menu := XPath("//a[span[text()='Download']]")
	hidden := XPath("//button[span[text()='Create zip file']]")

	f := NewFakeSession()
	f.AddPage("https://example.com/album", map[Selector]Condition{
		loaded: Present,
		menu:   Clickable,
		hidden: Present,
	})

	require.NoError(t, f.Navigate(ctx, "https://example.com/album"))
	assert.NoError(t, f.WaitFor(ctx, loaded, Present, time.Second))
	assert.NoError(t, f.WaitFor(ctx, menu, Clickable, time.Second))

	err := f.WaitFor(ctx, hidden, Clickable, time.Second)
	assert.ErrorIs(t, err, ErrTimeout)

	exists, err := f.Exists(ctx, hidden)
	require.NoError(t, err)
	assert.True(t, exists)

	exists, err = f.Exists(ctx, CSS("#missing"))
	require.NoError(t, err)
	assert.False(t, exists)

	assert.Error(t, f.Click(ctx, hidden))
	require.NoError(t, f.Click(ctx, menu))
	assert.Equal(t, []Selector{menu}, f.Clicks())
}

func TestFakeSessionOnClickChangesPage(t *testing.T) {
	ctx := context.Background()
	create := XPath("//button[span[text()='Create zip file']]")
	ready := XPath("//button[contains(text(), 'Download zip file')]")

	f := NewFakeSession()
	f.AddPage("u", map[Selector]Condition{create: Clickable})
	f.OnClick = func(s *FakeSession, sel Selector) error {
		if sel == create {
			s.SetControl(ready, Clickable)
		}
		return nil
	}

	require.NoError(t, f.Navigate(ctx, "u"))
	assert.ErrorIs(t, f.WaitFor(ctx, ready, Visible, time.Second), ErrTimeout)
	require.NoError(t, f.Click(ctx, create))
	assert.NoError(t, f.WaitFor(ctx, ready, Visible, time.Second))
}

func TestFakeSessionUnknownPage(t *testing.T) {
	ctx := context.Background()
	f := NewFakeSession()

	require.NoError(t, f.Navigate(ctx, "https://example.com/nowhere"))
	assert.ErrorIs(t, f.WaitFor(ctx, CSS("body"), Present, time.Second), ErrTimeout)
	assert.Equal(t, []string{"https://example.com/nowhere"}, f.Navigated())
}

func TestFakeSessionNavigateError(t *testing.T) {
	boom := errors.New("net::ERR_NAME_NOT_RESOLVED")
	f := NewFakeSession()
	f.NavigateErrors["bad"] = boom

	assert.ErrorIs(t, f.Navigate(context.Background(), "bad"), boom)
	assert.Empty(t, f.Current())
}

func TestFakeSessionKillAndClose(t *testing.T) {
	ctx := context.Background()
	f := NewFakeSession()
	assert.NoError(t, f.Err())

	f.Kill(nil)
	assert.Error(t, f.Err())
	assert.Error(t, f.Navigate(ctx, "u"))

	require.NoError(t, f.Close())
	require.NoError(t, f.Close())
	assert.ErrorIs(t, f.Err(), ErrClosed)
	assert.Equal(t, 2, f.CloseCount())
}

func TestFakeSessionHonorsContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	f := NewFakeSession()
	assert.ErrorIs(t, f.Navigate(ctx, "u"), context.Canceled)
	assert.ErrorIs(t, f.WaitFor(ctx, CSS("a"), Present, time.Second), context.Canceled)
	assert.ErrorIs(t, f.Click(ctx, CSS("a")), context.Canceled)
}
