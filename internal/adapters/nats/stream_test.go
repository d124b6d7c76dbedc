package natsadapter

import (
	"errors"
	"testing"

	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStreamConn struct {
	js     nats.JetStreamContext
	err    error
	closed int
}

func (f *fakeStreamConn) JetStream(opts ...nats.JSOpt) (nats.JetStreamContext, error) {
	return f.js, f.err
}

func (f *fakeStreamConn) Close() { f.closed++ }

// fakeJS overrides only the stream management calls.
type fakeJS struct {
	nats.JetStreamContext
	addErr, updateErr error
	added             []string
}

func (f *fakeJS) AddStream(cfg *nats.StreamConfig, opts ...nats.JSOpt) (*nats.StreamInfo, error) {
	f.added = append(f.added, cfg.Name)
	if f.addErr != nil {
		return nil, f.addErr
	}
	return &nats.StreamInfo{Config: *cfg}, nil
}

func (f *fakeJS) UpdateStream(cfg *nats.StreamConfig, opts ...nats.JSOpt) (*nats.StreamInfo, error) {
	if f.updateErr != nil {
		return nil, f.updateErr
	}
	return &nats.StreamInfo{Config: *cfg}, nil
}

func TestOpenJetStream_ClosesConnWhenJetStreamUnavailable(t *testing.T) {
	conn := &fakeStreamConn{err: nats.ErrJetStreamNotEnabled}

	js, err := openJetStream(conn)

	require.ErrorIs(t, err, nats.ErrJetStreamNotEnabled)
	assert.Nil(t, js)
	assert.Equal(t, 1, conn.closed)
}

func TestOpenJetStream_ClosesConnWhenStreamSetupFails(t *testing.T) {
	denied := errors.New("insufficient resources")
	conn := &fakeStreamConn{js: &fakeJS{addErr: nats.ErrStreamNameAlreadyInUse, updateErr: denied}}

	_, err := openJetStream(conn)

	require.ErrorIs(t, err, denied)
	assert.Contains(t, err.Error(), positionStream)
	assert.Equal(t, 1, conn.closed)
}

func TestOpenJetStream_KeepsConnOnSuccess(t *testing.T) {
	fjs := &fakeJS{}
	conn := &fakeStreamConn{js: fjs}

	js, err := openJetStream(conn)

	require.NoError(t, err)
	assert.Same(t, fjs, js)
	assert.Equal(t, []string{positionStream}, fjs.added)
	assert.Zero(t, conn.closed)
}
