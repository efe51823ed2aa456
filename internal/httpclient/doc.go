/*
Package httpclient provides the shared, pooled HTTP client used by the load generator.

# Overview

One Client is built per process from a Config and shared read-only by every
unit of work. It bundles:
  - A named connection pool with a bounded number of connection slots
  - A bounded pending-acquire queue for callers waiting on a slot
  - Connect, read and write timeouts
  - An in-memory cap on buffered response bodies

# Connection Pool

The pool wraps an http.Transport whose per-host connection limit matches the
slot count. Slots are handed out by a weighted semaphore. A caller that cannot
get a slot immediately joins the pending queue; when the queue is full, or the
pending-acquire timeout expires, the call fails with ErrPoolExhausted instead
of hanging.

# Timeouts

ConnectTimeout bounds the dial. WriteTimeout is re-armed before every socket
write. ReadTimeout only runs while a response is owed: it bounds the wait for
headers after the request is written, then each stall while reading the body.
A connection sitting idle in the pool has no deadline, so it never expires
under a later request.

# Errors

Every failed call returns a *Error whose Kind is one of:
  - KindTransport: connection-level failure
  - KindTimeout: connect, read or write deadline exceeded
  - KindPoolExhausted: no slot and no room in the pending queue
  - KindPayloadTooLarge: body exceeds Config.MaxInMemorySize
  - KindRemote: 4xx/5xx status, body captured verbatim as text
  - KindDecode: success status but the body did not decode

errors.Is works against the package sentinels (ErrTimeout, ErrRemote, ...).

# Example Usage

	client, err := httpclient.New(httpclient.DefaultConfig(), log)
	if err != nil {
		return err
	}
	defer client.Close()

	body, err := httpclient.Get(ctx, client, "http://localhost:8080", nil, httpclient.Text)
	if err != nil {
		var herr *httpclient.Error
		if errors.As(err, &herr) && herr.Kind == httpclient.KindRemote {
			fmt.Println(herr.StatusCode, herr.Body)
		}
		return err
	}

# Thread Safety

Client is safe for concurrent use. Its configuration is fixed at construction.
*/
package httpclient
