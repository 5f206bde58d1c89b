package postgres_test

import (
	"context"
	"database/sql"
	"fmt"
	"testing"
	"time"

	"github.com/ory/dockertest/v3"
	"github.com/ory/dockertest/v3/docker"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	migrate "github.com/mikeydub/indexing-serv/db"
	"github.com/mikeydub/indexing-serv/service/persist"
	"github.com/mikeydub/indexing-serv/service/persist/postgres"
)

// TransferRepositorySuite runs the Postgres-backed Repository against a
// disposable postgres container, the way the teacher's integration tests
// spin up postgres via ory/dockertest rather than mocking the driver.
type TransferRepositorySuite struct {
	suite.Suite
	pool     *dockertest.Pool
	resource *dockertest.Resource
	repo     *postgres.TransferRepository
}

func TestTransferRepositorySuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping postgres integration suite in -short mode")
	}
	suite.Run(t, new(TransferRepositorySuite))
}

func (s *TransferRepositorySuite) SetupSuite() {
	pool, err := dockertest.NewPool("")
	require.NoError(s.T(), err)
	pool.MaxWait = 3 * time.Minute
	s.pool = pool

	resource, err := pool.RunWithOptions(&dockertest.RunOptions{
		Repository: "postgres",
		Tag:        "15",
		Env:        []string{"POSTGRES_PASSWORD=postgres", "POSTGRES_DB=indexer"},
	}, func(c *docker.HostConfig) {
		c.AutoRemove = true
		c.RestartPolicy = docker.RestartPolicy{Name: "no"}
	})
	require.NoError(s.T(), err)
	s.resource = resource

	hostPort := resource.GetHostPort("5432/tcp")
	databaseURL := fmt.Sprintf("postgres://postgres:postgres@%s/indexer?sslmode=disable", hostPort)

	var sqlDB *sql.DB
	err = pool.Retry(func() error {
		var err error
		sqlDB, err = postgres.NewClient(databaseURL)
		if err != nil {
			return err
		}
		return sqlDB.Ping()
	})
	require.NoError(s.T(), err)
	require.NoError(s.T(), migrate.RunMigrations(sqlDB, "../../../db/migrations"))
	sqlDB.Close()

	pgxPool, err := postgres.NewPgxClient(databaseURL)
	require.NoError(s.T(), err)
	s.repo = postgres.NewTransferRepository(pgxPool)
}

func (s *TransferRepositorySuite) TearDownSuite() {
	if s.resource != nil {
		s.pool.Purge(s.resource)
	}
}

func (s *TransferRepositorySuite) TestInsertAndGetByHash() {
	t := persist.Transfer{
		TxHash:      "0xabc",
		LogIndex:    0,
		BlockNumber: 100,
		Sender:      "0xsender",
		Receiver:    persist.NullAddress{Address: "0xreceiver", Valid: true},
		ValueWei:    persist.ValueWeiFromBigEndian([]byte{0x10}),
		TxTime:      1000,
	}
	require.NoError(s.T(), s.repo.InsertTransfer(context.Background(), t))

	got, err := s.repo.GetTransferByHash(context.Background(), "0xabc")
	require.NoError(s.T(), err)
	s.Equal(t.Sender, got.Sender)
	s.Equal(t.Receiver, got.Receiver)
	s.Equal("16", got.ValueWei.String())
}

func (s *TransferRepositorySuite) TestInsertIsIdempotentOnConflict() {
	t := persist.Transfer{TxHash: "0xdup", LogIndex: 0, BlockNumber: 1, Sender: "0xa", TxTime: 1}
	require.NoError(s.T(), s.repo.InsertTransfer(context.Background(), t))
	require.NoError(s.T(), s.repo.InsertTransfer(context.Background(), t))
}

func (s *TransferRepositorySuite) TestGetLastSavedBlock() {
	require.NoError(s.T(), s.repo.InsertTransfer(context.Background(), persist.Transfer{
		TxHash: "0xmax1", LogIndex: 0, BlockNumber: 500, Sender: "0xa", TxTime: 1,
	}))
	require.NoError(s.T(), s.repo.InsertTransfer(context.Background(), persist.Transfer{
		TxHash: "0xmax2", LogIndex: 0, BlockNumber: 900, Sender: "0xa", TxTime: 1,
	}))

	last, err := s.repo.GetLastSavedBlock(context.Background())
	require.NoError(s.T(), err)
	require.NotNil(s.T(), last)
	s.EqualValues(900, *last)
}

func (s *TransferRepositorySuite) TestGetTransferByHashNotFound() {
	_, err := s.repo.GetTransferByHash(context.Background(), "0xmissing")
	s.ErrorIs(err, persist.ErrTransferNotFound)
}

func (s *TransferRepositorySuite) TestListTransfersFiltersAndPaginates() {
	ctx := context.Background()
	require.NoError(s.T(), s.repo.InsertTransfer(ctx, persist.Transfer{
		TxHash: "0xlist1", LogIndex: 0, BlockNumber: 10, Sender: "0xsenderA",
		Receiver: persist.NullAddress{Address: "0xreceivera", Valid: true}, TxTime: 100,
	}))
	require.NoError(s.T(), s.repo.InsertTransfer(ctx, persist.Transfer{
		TxHash: "0xlist2", LogIndex: 0, BlockNumber: 20, Sender: "0xsenderB",
		Receiver: persist.NullAddress{Address: "0xreceivera", Valid: true}, TxTime: 200,
	}))

	receiver := persist.Address("0xreceivera")
	results, err := s.repo.ListTransfers(ctx, persist.TransferFilter{Receiver: &receiver, PageSize: 10})
	require.NoError(s.T(), err)
	require.Len(s.T(), results, 2)
	s.EqualValues(20, results[0].BlockNumber) // ORDER BY block_number DESC
}
