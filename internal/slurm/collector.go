package slurm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"sdetails/internal/transport"
)

const (
	// Inventory and partition sizes travel in one shell invocation; a sinfo
	// failure anywhere here is fatal for the pass. Without set -e the combined
	// command would report only the last sub-command's exit status, turning a
	// failed inventory into an empty zero-node snapshot.
	inventoryCollectCommand = `set -e; sinfo --Format=Partition,NodeHost,StateCompact,CPUsState,AllocMem,Memory,Gres,GresUsed; echo "__SDETAILS_SPLIT__"; sinfo -h -o "%P %D"`

	// Queue data is supplementary; a squeue failure degrades to empty counts.
	queueCollectCommand = `squeue -h -o "%i %t %P %N"`
)

// Collector produces snapshots by running scheduler reporting commands over a
// transport.
type Collector struct {
	transport      transport.Transport
	commandTimeout time.Duration
	log            *logrus.Logger
}

func NewCollector(t transport.Transport, commandTimeout time.Duration, log *logrus.Logger) *Collector {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Collector{
		transport:      t,
		commandTimeout: commandTimeout,
		log:            log,
	}
}

// Collect runs one full pipeline pass. The returned error is non-nil only when
// the node inventory itself is unavailable; queue report failures are absorbed
// into an empty QueueSnapshot.
func (c *Collector) Collect(ctx context.Context) (Snapshot, error) {
	raw, err := c.runWithTimeout(ctx, inventoryCollectCommand)
	if err != nil {
		return Snapshot{}, fmt.Errorf("collect node inventory: %w", err)
	}

	inventoryRaw, sizesRaw, err := splitInventoryOutput(raw)
	if err != nil {
		return Snapshot{}, err
	}

	snap := Snapshot{
		Nodes:       parseNodeLines(inventoryRaw),
		Partitions:  parsePartitionSizes(sizesRaw),
		Queue:       emptyQueueSnapshot(),
		CollectedAt: time.Now(),
	}

	queueRaw, err := c.runWithTimeout(ctx, queueCollectCommand)
	if err != nil {
		c.log.WithError(err).Warn("queue report unavailable, job counts zeroed for this pass")
		return snap, nil
	}
	snap.Queue = parseQueueLines(queueRaw)
	return snap, nil
}

func (c *Collector) runWithTimeout(ctx context.Context, command string) (string, error) {
	cmdCtx, cancel := context.WithTimeout(ctx, c.commandTimeout)
	defer cancel()

	res, err := c.transport.Run(cmdCtx, command)
	if err != nil {
		return "", err
	}
	return strings.TrimRight(res.Stdout, "\n"), nil
}

func splitInventoryOutput(raw string) (inventory string, sizes string, err error) {
	const marker = "__SDETAILS_SPLIT__"
	parts := strings.SplitN(raw, marker, 2)
	if len(parts) != 2 {
		return "", "", fmt.Errorf("unexpected inventory output format: split marker missing")
	}
	return strings.TrimRight(parts[0], "\n"), strings.TrimSpace(parts[1]), nil
}
