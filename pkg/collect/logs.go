// Package collect persists what a scenario leaves behind: the logs of every instance and the
// events of its namespace. Collection is best effort, failures are logged and never abort a run.
package collect

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/spf13/afero"

	"github.com/kiegroup/kie-cloud-tests/pkg/config"
	"github.com/kiegroup/kie-cloud-tests/pkg/deployment"
	"github.com/kiegroup/kie-cloud-tests/pkg/failure"
	"github.com/kiegroup/kie-cloud-tests/pkg/log"
	"github.com/kiegroup/kie-cloud-tests/pkg/wait"
)

const (
	DefaultDiscoveryInterval = 5 * time.Second
	DefaultFlushInterval     = 5 * time.Second
)

// InstanceSource lists the instances whose logs are collected.
type InstanceSource interface {
	Instances(ctx context.Context) ([]deployment.Instance, error)
}

// Folder returns the folder the artifacts of a scenario are written to.
func Folder(cfg *config.Config, logFolder string) string {
	return filepath.Join(cfg.Optional(config.InstanceLogs, config.DefaultInstanceLogs), logFolder)
}

// LogCollector follows the logs of every instance of a source and appends them to
// <folder>/<instance>.log.
type LogCollector struct {
	fs     afero.Fs
	folder string
	source InstanceSource
	logger log.Logger

	DiscoveryInterval time.Duration
	FlushInterval     time.Duration

	tails         sync.Map
	wg            sync.WaitGroup
	tailCtx       context.Context
	cancelTails   context.CancelFunc
	stopDiscovery context.CancelFunc
	stopped       chan struct{}
}

func NewLogCollector(fs afero.Fs, folder string, source InstanceSource, logger log.Logger) *LogCollector {
	return &LogCollector{
		fs:                fs,
		folder:            folder,
		source:            source,
		logger:            logger.WithPrefix("logs"),
		DiscoveryInterval: DefaultDiscoveryInterval,
		FlushInterval:     DefaultFlushInterval,
	}
}

// Start begins discovering instances. It returns immediately.
func (c *LogCollector) Start(ctx context.Context) {
	c.tailCtx, c.cancelTails = context.WithCancel(ctx)
	ctx, c.stopDiscovery = context.WithCancel(c.tailCtx)
	c.stopped = make(chan struct{})

	go func() {
		defer close(c.stopped)
		for {
			c.discover(ctx)
			if err := wait.Sleep(ctx, c.DiscoveryInterval); err != nil {
				return
			}
		}
	}()
}

// finished marks an instance whose log stream ended. Its log is complete and is not followed again.
type finished struct{}

// Tailing reports whether the log of instance is currently followed.
func (c *LogCollector) Tailing(instance string) bool {
	v, ok := c.tails.Load(instance)
	if !ok {
		return false
	}
	_, done := v.(finished)
	return !done
}

func (c *LogCollector) discover(ctx context.Context) {
	instances, err := c.source.Instances(ctx)
	if err != nil {
		if !failure.IsInterrupted(err) && ctx.Err() == nil {
			c.logger.Debugf("failed to list instances: %v", err)
		}
		return
	}
	for _, inst := range instances {
		if _, loaded := c.tails.LoadOrStore(inst.Name(), inst); loaded {
			continue
		}
		c.wg.Add(1)
		go c.tail(c.tailCtx, inst)
	}
}

func (c *LogCollector) tail(ctx context.Context, inst deployment.Instance) {
	defer c.wg.Done()
	ended := false
	defer func() {
		if ended {
			c.tails.Store(inst.Name(), finished{})
		} else {
			c.tails.Delete(inst.Name())
		}
	}()

	if err := c.fs.MkdirAll(c.folder, 0755); err != nil {
		c.logger.Errorf("failed to create log folder %s: %v", c.folder, err)
		return
	}
	if err := c.write(inst.Name(), nil); err != nil {
		c.logger.Errorf("failed to create log of %s: %v", inst.Name(), err)
		return
	}

	stream, err := inst.Logs(ctx, true)
	if err != nil {
		c.logger.Errorf("failed to follow log of %s: %v", inst.Name(), err)
		return
	}
	defer stream.Close()

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(stream)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	ticker := time.NewTicker(c.FlushInterval)
	defer ticker.Stop()

	var buf []string
	flush := func() {
		if err := c.write(inst.Name(), buf); err != nil {
			c.logger.Errorf("failed to write log of %s: %v", inst.Name(), err)
		}
		buf = nil
	}
	for {
		select {
		case line, ok := <-lines:
			if !ok {
				ended = ctx.Err() == nil
				flush()
				return
			}
			buf = append(buf, line)
		case <-ticker.C:
			flush()
		case <-ctx.Done():
			flush()
			return
		}
	}
}

// write appends lines to the log file of an instance, creating it when missing.
func (c *LogCollector) write(instance string, lines []string) error {
	f, err := c.fs.OpenFile(filepath.Join(c.folder, instance+".log"), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	if len(lines) > 0 {
		if _, err := f.WriteString(strings.Join(lines, "\n") + "\n"); err != nil {
			f.Close()
			return err
		}
	}
	return f.Close()
}

// Close stops discovery, cancels every tail and waits until their buffers are written.
// Instances that appeared since the last discovery are picked up once more first.
func (c *LogCollector) Close(ctx context.Context) error {
	if c.stopDiscovery == nil {
		return nil
	}
	c.stopDiscovery()
	<-c.stopped
	c.discover(c.tailCtx)
	c.cancelTails()

	done := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("log collector of %s did not flush in time: %w", c.folder, ctx.Err())
	}
}
