package server

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/facebookgo/stackerr"

	"github.com/kushalsai-01/resolvecache/internal/errors"
)

type conn struct {
	reader
	*bufio.Writer
	closer io.Closer
	ctx    context.Context
	log    *slog.Logger
	*ConnMeta
}

func newConn(ctx context.Context, l *slog.Logger, m *ConnMeta, rwc io.ReadWriteCloser) *conn {
	return &conn{
		reader:   newReader(rwc),
		Writer:   bufio.NewWriterSize(rwc, OutBufferSize),
		closer:   rwc,
		ctx:      ctx,
		log:      l,
		ConnMeta: m,
	}
}

func (c *conn) serve() {
	c.log.Debug("serve connection")
	defer func() {
		if r := recover(); r != nil {
			c.serverError(stackerr.Newf("panic: %v", r))
		}
		c.Close()
		c.log.Debug("connection closed")
	}()

	err := c.loop()
	if err != nil && c.ctx.Err() == nil {
		c.serverError(err)
	}
}

func (c *conn) Close() error {
	c.Writer.Flush()
	return c.closer.Close()
}

func (c *conn) loop() error {
	for {
		command, fields, clientErr, err := c.readCommand()
		if err != nil {
			if err == io.EOF {
				return nil
			}
			return err
		}
		if clientErr == nil {
			c.log.Debug("command", "name", string(command))
			switch string(command) {
			case ResolveCommand:
				clientErr, err = c.resolve(fields)
			case RemoveCommand:
				clientErr, err = c.remove(fields)
			case SizeCommand:
				clientErr, err = c.size(fields)
			case StatsCommand:
				clientErr, err = c.stats(fields)
			case QuitCommand:
				return c.Flush()
			default:
				c.log.Warn("unexpected command", "name", string(command))
				err = c.sendResponse(ErrorResponse)
			}
		}
		if clientErr != nil && err == nil {
			err = c.sendClientError(clientErr)
		}
		if err != nil {
			return err
		}
	}
}

func (c *conn) resolve(fields [][]byte) (clientErr, err error) {
	key, clientErr := parseKeyField(fields)
	if clientErr != nil {
		return
	}
	value, outcome, rerr := c.Cache.Resolve(c.ctx, key, c.Resolver)
	if rerr != nil {
		if errors.IsInvalid(rerr) {
			clientErr = rerr
			return
		}
		c.log.Warn("resolve failed", "key", key, "class", errors.Classify(rerr).String(), "error", rerr)
		err = c.sendResponse(ServerErrorResponse + " " + oneLine(rerr.Error()))
		return
	}
	if verr := checkValue(value); verr != nil {
		c.log.Error("unframeable value", "key", key, "error", verr)
		err = c.sendResponse(ServerErrorResponse + " " + unwrap(verr).Error())
		return
	}
	err = c.sendResponse(outcome.String() + " " + value)
	return
}

func (c *conn) remove(fields [][]byte) (clientErr, err error) {
	key, clientErr := parseKeyField(fields)
	if clientErr != nil {
		return
	}
	if rerr := c.Cache.Remove(key); rerr != nil {
		err = c.sendResponse(ServerErrorResponse + " " + oneLine(rerr.Error()))
		return
	}
	err = c.sendResponse(RemovedResponse)
	return
}

func (c *conn) size(fields [][]byte) (clientErr, err error) {
	if clientErr = checkNoFields(fields); clientErr != nil {
		return
	}
	err = c.sendResponse(fmt.Sprintf("%s %d", SizeResponse, c.Cache.Size()))
	return
}

func (c *conn) stats(fields [][]byte) (clientErr, err error) {
	if clientErr = checkNoFields(fields); clientErr != nil {
		return
	}
	rep := c.Cache.Stats()
	stat := func(name string, value any) {
		fmt.Fprintf(c, "%s %s %v"+Separator, StatResponse, name, value)
	}
	stat("hits", rep.Hits)
	stat("misses", rep.Misses)
	stat("failures", rep.Failures)
	stat("evictions", rep.Evictions)
	stat("expirations", rep.Expirations)
	stat("size", c.Cache.Size())
	fmt.Fprintf(c, "%s hit_rate %.4f"+Separator, StatResponse, rep.HitRate)
	fmt.Fprintf(c, "%s avg_latency_ms %.3f"+Separator, StatResponse, rep.AvgLatencyMs)
	err = c.sendResponse(EndResponse)
	return
}

func (c *conn) serverError(err error) {
	c.log.Error("server error", "error", err)
	if err == io.ErrUnexpectedEOF {
		return
	}
	c.sendResponse(fmt.Sprintf("%s %s", ServerErrorResponse, oneLine(unwrap(err).Error())))
}

func (c *conn) sendClientError(err error) error {
	c.log.Debug("client error", "error", err)
	err = unwrap(err)
	return c.sendResponse(fmt.Sprintf("%s %s", ClientErrorResponse, oneLine(err.Error())))
}

func (c *conn) sendResponse(res string) error {
	c.WriteString(res)
	c.WriteString(Separator)
	return c.Flush()
}

func (c *conn) Flush() error {
	return stackerr.Wrap(c.Writer.Flush())
}

func oneLine(s string) string {
	return strings.NewReplacer("\r", " ", "\n", " ").Replace(s)
}
