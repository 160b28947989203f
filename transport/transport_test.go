package transport

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testServer(t *testing.T) *Server {
	t.Helper()
	srv, err := Listen(testLogger(), ServerConfig{Host: "127.0.0.1"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = srv.Close() })
	return srv
}

func testContext(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func TestTransport_SenderToCollector(t *testing.T) {
	req := require.New(t)
	srv := testServer(t)
	ctx := testContext(t)

	sender, err := DialSender(ctx, "ws://"+srv.RecvAddr()+pushPath)
	req.NoError(err)
	defer func() { _ = sender.Close() }()

	// When a client pushes one frame
	req.NoError(sender.Send([]byte("[GLOBAL] 1 alice: hi")))

	// Then the relay side receives it on the collector
	payload, err := srv.Collector().Receive(ctx)
	req.NoError(err)
	req.Equal("[GLOBAL] 1 alice: hi", string(payload))
}

func TestTransport_CollectorMergesManySenders(t *testing.T) {
	req := require.New(t)
	srv := testServer(t)
	ctx := testContext(t)

	one, err := DialSender(ctx, "ws://"+srv.RecvAddr()+pushPath)
	req.NoError(err)
	defer func() { _ = one.Close() }()
	two, err := DialSender(ctx, "ws://"+srv.RecvAddr()+pushPath)
	req.NoError(err)
	defer func() { _ = two.Close() }()

	req.NoError(one.Send([]byte("[GLOBAL] 1 alice: from one")))
	req.NoError(two.Send([]byte("[GLOBAL] 2 bob: from two")))

	first, err := srv.Collector().Receive(ctx)
	req.NoError(err)
	second, err := srv.Collector().Receive(ctx)
	req.NoError(err)

	// Arrival order across senders is not promised, only delivery.
	req.ElementsMatch(
		[]string{"[GLOBAL] 1 alice: from one", "[GLOBAL] 2 bob: from two"},
		[]string{string(first), string(second)},
	)
}

func TestTransport_SubscriberPrefixFiltering(t *testing.T) {
	req := require.New(t)
	srv := testServer(t)
	ctx := testContext(t)

	// Given one subscriber on [GEN] and one on [GENERAL]
	gen, err := DialSubscriber(ctx, "ws://"+srv.PubAddr()+subPath, "[GEN]")
	req.NoError(err)
	defer func() { _ = gen.Close() }()
	general, err := DialSubscriber(ctx, "ws://"+srv.PubAddr()+subPath, "[GENERAL]")
	req.NoError(err)
	defer func() { _ = general.Close() }()

	req.Eventually(func() bool { return srv.Subscribers() == 2 },
		2*time.Second, 10*time.Millisecond)

	// When one frame per channel goes out, every subscriber sees both
	// streams but filters locally
	srv.Broadcaster().Publish([]byte("[GENERAL] 1 alice: hello general"))
	srv.Broadcaster().Publish([]byte("[GEN] 2 bob: hello gen"))

	got, err := gen.Receive(ctx)
	req.NoError(err)
	req.Equal("[GEN] 2 bob: hello gen", string(got))

	got, err = general.Receive(ctx)
	req.NoError(err)
	req.Equal("[GENERAL] 1 alice: hello general", string(got))
}

func TestTransport_BroadcastPreservesOrderPerSubscriber(t *testing.T) {
	req := require.New(t)
	srv := testServer(t)
	ctx := testContext(t)

	sub, err := DialSubscriber(ctx, "ws://"+srv.PubAddr()+subPath, "[GLOBAL]")
	req.NoError(err)
	defer func() { _ = sub.Close() }()
	req.Eventually(func() bool { return srv.Subscribers() == 1 },
		2*time.Second, 10*time.Millisecond)

	frames := []string{
		"[GLOBAL] 1 alice: one",
		"[GLOBAL] 2 alice: two",
		"[GLOBAL] 3 alice: three",
	}
	for _, f := range frames {
		srv.Broadcaster().Publish([]byte(f))
	}

	for _, want := range frames {
		got, err := sub.Receive(ctx)
		req.NoError(err)
		req.Equal(want, string(got))
	}
}

func TestTransport_CloseUnblocksCollector(t *testing.T) {
	req := require.New(t)
	srv := testServer(t)

	done := make(chan error, 1)
	go func() {
		_, err := srv.Collector().Receive(context.Background())
		done <- err
	}()

	_ = srv.Close()

	select {
	case err := <-done:
		req.ErrorIs(err, ErrClosed)
	case <-time.After(2 * time.Second):
		req.Fail("collector receive did not unblock on close")
	}
}

func TestTransport_SubscriberCloseUnblocksReceive(t *testing.T) {
	req := require.New(t)
	srv := testServer(t)
	ctx := testContext(t)

	sub, err := DialSubscriber(ctx, "ws://"+srv.PubAddr()+subPath, "[GLOBAL]")
	req.NoError(err)

	done := make(chan error, 1)
	go func() {
		_, err := sub.Receive(context.Background())
		done <- err
	}()

	// Let the receive park before pulling the plug.
	time.Sleep(50 * time.Millisecond)
	_ = sub.Close()

	select {
	case err := <-done:
		req.ErrorIs(err, ErrClosed)
	case <-time.After(2 * time.Second):
		req.Fail("subscriber receive did not unblock on close")
	}
}
