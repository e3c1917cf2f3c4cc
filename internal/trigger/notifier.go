package trigger

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/ryanbastic/go-sheetcms/internal/metrics"
	"github.com/ryanbastic/go-sheetcms/internal/repository"
)

// Notifier dispatches record-change notifications to subscribed plugins via JSON-RPC.
type Notifier struct {
	registry  *PluginRegistry
	rpcClient *RPCClient
	logger    *slog.Logger
	timeout   time.Duration
	wg        sync.WaitGroup
}

var _ repository.Observer = (*Notifier)(nil)

// NewNotifier creates a Notifier. timeout bounds one delivery including retries.
func NewNotifier(registry *PluginRegistry, rpcClient *RPCClient, timeout time.Duration, logger *slog.Logger) *Notifier {
	return &Notifier{
		registry:  registry,
		rpcClient: rpcClient,
		logger:    logger,
		timeout:   timeout,
	}
}

// RecordChanged fires a goroutine per subscribed plugin. Errors are logged
// and counted; the write that caused the change is never held up.
func (n *Notifier) RecordChanged(ctx context.Context, c repository.Change) {
	plugins := n.registry.ForSheet(c.Sheet)
	if len(plugins) == 0 {
		return
	}

	params := RecordWrittenParams{
		Sheet:      string(c.Sheet),
		Action:     string(c.Action),
		ID:         c.Record.ID(),
		Record:     c.Record.Fields,
		OccurredAt: c.OccurredAt,
	}
	base := context.WithoutCancel(ctx)

	for _, p := range plugins {
		n.wg.Add(1)
		go func(endpoint, pluginName string) {
			defer n.wg.Done()
			ctx, cancel := base, context.CancelFunc(func() {})
			if n.timeout > 0 {
				ctx, cancel = context.WithTimeout(base, n.timeout)
			}
			defer cancel()

			resp, err := n.rpcClient.Call(ctx, endpoint, MethodRecordWritten, params)
			if err != nil {
				metrics.TriggerDelivery(params.Sheet, "failed")
				n.logger.Error("trigger rpc failed", "plugin", pluginName, "endpoint", endpoint, "sheet", params.Sheet, "id", params.ID, "error", err)
				return
			}
			if resp.Error != nil {
				metrics.TriggerDelivery(params.Sheet, "rpc_error")
				n.logger.Error("trigger rpc returned error", "plugin", pluginName, "endpoint", endpoint, "error", resp.Error)
				return
			}
			metrics.TriggerDelivery(params.Sheet, "ok")
		}(p.Endpoint, p.Name)
	}
}

// Wait blocks until in-flight deliveries finish.
func (n *Notifier) Wait() {
	n.wg.Wait()
}
