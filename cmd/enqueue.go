package cmd

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/nsgamedb/eshop-scraper/internal/eshop"
	"github.com/nsgamedb/eshop-scraper/internal/queue"
)

func newEnqueueCmd() *cobra.Command {
	var (
		file         string
		source       string
		priority     string
		forceRefresh bool
	)

	cmd := &cobra.Command{
		Use:   "enqueue [id...]",
		Short: "Adds game ids to the pending queue",
		Long: `Adds title ids (16 hex characters) or nsuids (14 digits) to the
pending queue. Ids may be passed as arguments or read from a file with
one id per line; blank lines and lines starting with # are skipped.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			appInstance, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			logger := appInstance.Logger()

			ids := append([]string(nil), args...)
			if file != "" {
				fileIDs, err := readIDFile(file)
				if err != nil {
					return err
				}
				ids = append(ids, fileIDs...)
			}
			if len(ids) == 0 {
				return fmt.Errorf("no ids given: pass them as arguments or via --file")
			}

			prio := queue.Priority(priority)
			switch prio {
			case queue.PriorityNormal, queue.PriorityRefresh:
			default:
				return fmt.Errorf("priority must be normal or refresh, got %q", priority)
			}

			enqueued := 0
			for _, id := range ids {
				if _, err := eshop.ClassifyID(id); err != nil {
					logger.Warn("skipping invalid id", zap.String("id", id))
					continue
				}
				item := queue.Item{
					ID:           id,
					Source:       source,
					Priority:     prio,
					ForceRefresh: forceRefresh,
				}
				if err := appInstance.Queue().Enqueue(cmd.Context(), item); err != nil {
					return fmt.Errorf("enqueue %s: %w", id, err)
				}
				enqueued++
			}

			logger.Info("enqueue finished",
				zap.Int("enqueued", enqueued),
				zap.Int("skipped", len(ids)-enqueued),
			)
			return nil
		},
	}

	cmd.Flags().StringVar(&file, "file", "", "file with one id per line")
	cmd.Flags().StringVar(&source, "source", "manual", "source tag stored with each item")
	cmd.Flags().StringVar(&priority, "priority", "normal", "scheduling class: normal or refresh")
	cmd.Flags().BoolVar(&forceRefresh, "force-refresh", false, "mark items so scraped data overwrites stored data")

	return cmd
}

func readIDFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open id file: %w", err)
	}
	defer f.Close()

	var ids []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		ids = append(ids, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read id file: %w", err)
	}
	return ids, nil
}
