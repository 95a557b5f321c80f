package app

import (
	"flag"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"
)

func TestAttachAndFromContext(t *testing.T) {
	c := cli.NewContext(&cli.App{Name: "partnest"}, flag.NewFlagSet("partnest", flag.ContinueOnError), nil)

	_, err := FromContext(c)
	assert.Error(t, err)

	application := &App{}
	application.Attach(c)

	got, err := FromContext(c)
	require.NoError(t, err)
	assert.Same(t, application, got)
}
