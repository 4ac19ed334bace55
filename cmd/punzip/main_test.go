package main

import (
	"errors"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/no-more-secrets/p-unzip/internal/engine"
)

func TestResolveJobsSpecialValues(t *testing.T) {
	got, err := resolveJobs("max")
	assert.NoError(t, err)
	assert.Equal(t, runtime.NumCPU(), got)

	got, err = resolveJobs("auto")
	assert.NoError(t, err)
	assert.Greater(t, got, 0)
	assert.LessOrEqual(t, got, runtime.NumCPU())
}

func TestResolveJobsInteger(t *testing.T) {
	got, err := resolveJobs("5")
	assert.NoError(t, err)
	assert.Equal(t, 5, got)
}

func TestResolveJobsRejectsNonPositive(t *testing.T) {
	_, err := resolveJobs("0")
	assert.Error(t, err)

	_, err = resolveJobs("not-a-number")
	assert.Error(t, err)
}

func TestResolveChunkSizeMax(t *testing.T) {
	got, err := resolveChunkSize("max")
	assert.NoError(t, err)
	assert.Equal(t, uint64(0), got)
}

func TestResolveChunkSizeInteger(t *testing.T) {
	got, err := resolveChunkSize("8192")
	assert.NoError(t, err)
	assert.Equal(t, uint64(8192), got)
}

func TestResolveChunkSizeRejectsGarbage(t *testing.T) {
	_, err := resolveChunkSize("a lot")
	assert.Error(t, err)
}

func TestResolveTsXformCurrentIsNoop(t *testing.T) {
	xform := resolveTsXform("current")
	assert.Equal(t, int64(0), xform(12345))
}

func TestResolveTsXformIntegerIsConstant(t *testing.T) {
	xform := resolveTsXform("1000")
	assert.Equal(t, int64(1000), xform(1))
	assert.Equal(t, int64(1000), xform(2))
}

func TestResolveTsXformDefaultIsIdentity(t *testing.T) {
	xform := resolveTsXform("")
	assert.Equal(t, int64(42), xform(42))

	xform = resolveTsXform("not-a-policy")
	assert.Equal(t, int64(7), xform(7))
}

func TestResolveTsXformReturnsEngineTsXformType(t *testing.T) {
	var _ engine.TsXform = resolveTsXform("current")
}

func TestDescribeParseErrorCategories(t *testing.T) {
	cases := []struct {
		err  error
		want string
	}{
		{errors.New("flag needs an argument: -j"), "option j must take a value"},
		{errors.New(`invalid boolean value "x" for -h: strconv.ParseBool: parsing "x": invalid syntax`), "option h does not take a value"},
		{errors.New("flag provided but not defined: -z"), "option z is not recognized"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, describeParseError(tc.err))
	}
}
