package memory_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slok/devsbx/internal/model"
	"github.com/slok/devsbx/internal/storage"
	"github.com/slok/devsbx/internal/storage/memory"
)

func batchRunFixture(id string, createdAt time.Time) model.BatchRun {
	return model.BatchRun{
		ID:           id,
		Module:       "device",
		Version:      "1.2.3",
		DeviceSerial: "serial-1",
		Status:       model.BatchRunStatusRunning,
		CreatedAt:    createdAt,
		Operations: []model.BatchOperation{
			{Index: 0, Type: model.OperationTypeErase, Status: model.OperationStatusPending},
		},
	}
}

func TestRepository(t *testing.T) {
	base := time.Now()

	tests := map[string]struct {
		actions func(ctx context.Context, t *testing.T, repo *memory.Repository) error
		expErr  error
	}{
		"Creating and getting a batch run should return the same run.": {
			actions: func(ctx context.Context, t *testing.T, repo *memory.Repository) error {
				run := batchRunFixture("id-1", base)
				require.NoError(t, repo.CreateBatchRun(ctx, run))

				got, err := repo.GetBatchRun(ctx, "id-1")
				require.NoError(t, err)
				assert.Equal(t, run, *got)
				return nil
			},
		},

		"Modifying a returned batch run should not modify the stored one.": {
			actions: func(ctx context.Context, t *testing.T, repo *memory.Repository) error {
				require.NoError(t, repo.CreateBatchRun(ctx, batchRunFixture("id-1", base)))

				got, err := repo.GetBatchRun(ctx, "id-1")
				require.NoError(t, err)
				got.Operations[0].Status = model.OperationStatusFailed

				got2, err := repo.GetBatchRun(ctx, "id-1")
				require.NoError(t, err)
				assert.Equal(t, model.OperationStatusPending, got2.Operations[0].Status)
				return nil
			},
		},

		"Updating a batch run should store the new state.": {
			actions: func(ctx context.Context, t *testing.T, repo *memory.Repository) error {
				run := batchRunFixture("id-1", base)
				require.NoError(t, repo.CreateBatchRun(ctx, run))

				finished := base.Add(time.Second)
				run.Status = model.BatchRunStatusCompleted
				run.FinishedAt = &finished
				require.NoError(t, repo.UpdateBatchRun(ctx, run))

				got, err := repo.GetBatchRun(ctx, "id-1")
				require.NoError(t, err)
				assert.Equal(t, model.BatchRunStatusCompleted, got.Status)
				assert.Equal(t, finished, *got.FinishedAt)
				return nil
			},
		},

		"Creating a duplicated batch run should fail.": {
			actions: func(ctx context.Context, t *testing.T, repo *memory.Repository) error {
				require.NoError(t, repo.CreateBatchRun(ctx, batchRunFixture("id-1", base)))
				return repo.CreateBatchRun(ctx, batchRunFixture("id-1", base))
			},
			expErr: model.ErrAlreadyExists,
		},

		"Updating a missing batch run should fail.": {
			actions: func(ctx context.Context, t *testing.T, repo *memory.Repository) error {
				return repo.UpdateBatchRun(ctx, batchRunFixture("id-1", base))
			},
			expErr: model.ErrNotFound,
		},

		"Getting a missing batch run should fail.": {
			actions: func(ctx context.Context, t *testing.T, repo *memory.Repository) error {
				_, err := repo.GetBatchRun(ctx, "id-1")
				return err
			},
			expErr: model.ErrNotFound,
		},

		"Listing should return runs newest first with the limit.": {
			actions: func(ctx context.Context, t *testing.T, repo *memory.Repository) error {
				for i, id := range []string{"id-1", "id-2", "id-3"} {
					require.NoError(t, repo.CreateBatchRun(ctx, batchRunFixture(id, base.Add(time.Duration(i)*time.Second))))
				}

				runs, err := repo.ListBatchRuns(ctx, storage.ListBatchRunsOpts{Limit: 2})
				require.NoError(t, err)
				require.Len(t, runs, 2)
				assert.Equal(t, "id-3", runs[0].ID)
				assert.Equal(t, "id-2", runs[1].ID)
				return nil
			},
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			repo, err := memory.NewRepository(memory.RepositoryConfig{})
			require.NoError(t, err)

			err = test.actions(context.Background(), t, repo)
			if test.expErr != nil {
				assert.ErrorIs(t, err, test.expErr)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
