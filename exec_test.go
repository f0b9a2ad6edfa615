package simpledb

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"strconv"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"
)

const articleSchema = `CREATE TABLE article (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	createdDate DATETIME NOT NULL,
	modifiedDate DATETIME NOT NULL,
	title TEXT NOT NULL,
	body TEXT NOT NULL,
	isBlind INTEGER NOT NULL DEFAULT 0
)`

func newTestDb(t *testing.T, opts ...Option) *SimpleDb {
	t.Helper()

	db, err := New(Config{Driver: "sqlite", DSN: ":memory:"}, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	ctx := context.Background()
	require.NoError(t, db.Run(ctx, articleSchema))

	for no := 1; no <= 6; no++ {
		err := db.GenSql().
			Append("INSERT INTO article (createdDate, modifiedDate, title, body, isBlind)").
			Append("VALUES (CURRENT_TIMESTAMP, CURRENT_TIMESTAMP, ?, ?, ?)", titleOf(no), "내용"+strconv.Itoa(no), no > 3).
			Run(ctx)
		require.NoError(t, err)
	}

	return db
}

func titleOf(no int) string {
	return "제목" + strconv.Itoa(no)
}

func TestInsert(t *testing.T) {
	ctx := context.Background()
	db := newTestDb(t)

	id, err := db.GenSql().
		Append("INSERT INTO article (createdDate, modifiedDate, title, body)").
		Append("VALUES (CURRENT_TIMESTAMP, CURRENT_TIMESTAMP, ?, ?)", "제목 new", "내용 new").
		Insert(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(7), id)

	article, found, err := SelectRow[Article](ctx, db.GenSql().Append("SELECT * FROM article WHERE id = ?", id))
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, "제목 new", article.Title)
	require.Equal(t, "내용 new", article.Body)
	require.False(t, article.IsBlind)
	require.False(t, article.CreatedDate.IsZero())
}

func TestInsertRequiresInsert(t *testing.T) {
	db := newTestDb(t)

	_, err := db.GenSql().Append("UPDATE article SET title = ?", "x").Insert(context.Background())
	require.ErrorIs(t, err, ErrNotInsert)
}

func TestUpdate(t *testing.T) {
	ctx := context.Background()
	db := newTestDb(t)

	affected, err := db.GenSql().
		Append("UPDATE article").
		Append("SET title = ?", "제목 new").
		Append("WHERE id IN ?", []int{0, 1, 2, 3}).
		Update(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(3), affected)

	titles, err := SelectValues[string](ctx, db.GenSql().Append("SELECT title FROM article WHERE id <= 3 ORDER BY id"))
	require.NoError(t, err)
	require.Equal(t, []string{"제목 new", "제목 new", "제목 new"}, titles)
}

func TestDelete(t *testing.T) {
	ctx := context.Background()
	db := newTestDb(t)

	affected, err := db.GenSql().AppendIn("DELETE FROM article WHERE id IN ?", 0, 1, 3).Delete(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(2), affected)

	count, err := db.GenSql().Append("SELECT COUNT(*) FROM article").SelectLong(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(4), count)
}

func TestSelectRow(t *testing.T) {
	ctx := context.Background()
	db := newTestDb(t)

	t.Run("one row", func(t *testing.T) {
		article, found, err := SelectRow[Article](ctx, db.GenSql().Append("SELECT * FROM article WHERE id = ?", 1))
		require.NoError(t, err)
		require.True(t, found)
		require.Equal(t, int64(1), article.ID)
		require.Equal(t, "제목1", article.Title)
		require.Equal(t, "내용1", article.Body)
		require.False(t, article.IsBlind)
		require.False(t, article.CreatedDate.IsZero())
		require.False(t, article.ModifiedDate.IsZero())
	})

	t.Run("pointer target", func(t *testing.T) {
		article, found, err := SelectRow[*Article](ctx, db.GenSql().Append("SELECT id, isBlind FROM article WHERE id = ?", 5))
		require.NoError(t, err)
		require.True(t, found)
		require.Equal(t, &Article{ID: 5, IsBlind: true}, article)
	})

	t.Run("no row", func(t *testing.T) {
		article, found, err := SelectRow[Article](ctx, db.GenSql().Append("SELECT * FROM article WHERE id = ?", 100))
		require.NoError(t, err)
		require.False(t, found)
		require.Equal(t, Article{}, article)
	})

	t.Run("many rows", func(t *testing.T) {
		_, _, err := SelectRow[Article](ctx, db.GenSql().Append("SELECT * FROM article"))
		var multi *MultiplicityError
		require.ErrorAs(t, err, &multi)
		require.Equal(t, "SELECT * FROM article", multi.Query)
	})
}

func TestSelectRows(t *testing.T) {
	ctx := context.Background()
	db := newTestDb(t)

	articles, err := SelectRows[Article](ctx, db.GenSql().
		Append("SELECT * FROM article").
		Append("WHERE isBlind = ?", true).
		Append("ORDER BY id DESC"))
	require.NoError(t, err)
	require.Len(t, articles, 3)
	require.Equal(t, int64(6), articles[0].ID)
	require.Equal(t, int64(4), articles[2].ID)

	none, err := SelectRows[Article](ctx, db.GenSql().Append("SELECT * FROM article WHERE id > 100"))
	require.NoError(t, err)
	require.Empty(t, none)
}

func TestSelectMaps(t *testing.T) {
	ctx := context.Background()
	db := newTestDb(t)

	m, err := db.GenSql().Append("SELECT id, title FROM article WHERE id = 2").SelectRowMap(ctx)
	require.NoError(t, err)
	require.Equal(t, map[string]any{"id": int64(2), "title": "제목2"}, m)

	m, err = db.GenSql().Append("SELECT id FROM article WHERE id = 200").SelectRowMap(ctx)
	require.NoError(t, err)
	require.Nil(t, m)

	ms, err := db.GenSql().Append("SELECT id FROM article WHERE id IN ? ORDER BY id", In(1, 2)).SelectRowsMap(ctx)
	require.NoError(t, err)
	require.Equal(t, []map[string]any{{"id": int64(1)}, {"id": int64(2)}}, ms)
}

func TestSelectScalars(t *testing.T) {
	ctx := context.Background()
	db := newTestDb(t)

	ids, err := db.GenSql().Append("SELECT id FROM article WHERE isBlind = ? ORDER BY id", false).SelectLongs(ctx)
	require.NoError(t, err)
	require.Equal(t, []int64{1, 2, 3}, ids)

	title, err := db.GenSql().Append("SELECT title FROM article WHERE id = ?", 4).SelectString(ctx)
	require.NoError(t, err)
	require.Equal(t, "제목4", title)

	blind, err := db.GenSql().Append("SELECT isBlind FROM article WHERE id = ?", 4).SelectBoolean(ctx)
	require.NoError(t, err)
	require.True(t, blind)

	created, err := db.GenSql().Append("SELECT createdDate FROM article WHERE id = ?", 1).SelectDatetime(ctx)
	require.NoError(t, err)
	require.False(t, created.IsZero())

	_, err = db.GenSql().Append("SELECT id FROM article WHERE id = ?", 100).SelectLong(ctx)
	require.ErrorIs(t, err, sql.ErrNoRows)
}

func TestTransactions(t *testing.T) {
	ctx := context.Background()
	db := newTestDb(t)

	count := func() int64 {
		n, err := db.GenSql().Append("SELECT COUNT(*) FROM article").SelectLong(ctx)
		require.NoError(t, err)
		return n
	}

	t.Run("rollback", func(t *testing.T) {
		require.NoError(t, db.StartTransaction(ctx))
		require.ErrorIs(t, db.StartTransaction(ctx), ErrTxInProgress)

		_, err := db.GenSql().Append("DELETE FROM article").Delete(ctx)
		require.NoError(t, err)
		require.Equal(t, int64(0), count())

		require.NoError(t, db.Rollback())
		require.Equal(t, int64(6), count())
		require.ErrorIs(t, db.Rollback(), ErrNoTx)
	})

	t.Run("failed InTx rolls back", func(t *testing.T) {
		boom := errors.New("boom")
		err := db.InTx(ctx, func(ctx context.Context) error {
			if _, err := db.GenSql().Append("DELETE FROM article WHERE id = ?", 1).Delete(ctx); err != nil {
				return err
			}
			return boom
		})
		require.ErrorIs(t, err, boom)
		require.Equal(t, int64(6), count())
	})

	t.Run("panicking InTx rolls back", func(t *testing.T) {
		require.Panics(t, func() {
			_ = db.InTx(ctx, func(ctx context.Context) error {
				_, _ = db.GenSql().Append("DELETE FROM article WHERE id = ?", 1).Delete(ctx)
				panic("boom")
			})
		})
		require.Equal(t, int64(6), count())
	})

	t.Run("commit", func(t *testing.T) {
		err := db.InTx(ctx, func(ctx context.Context) error {
			_, err := db.GenSql().Append("DELETE FROM article WHERE id = ?", 1).Delete(ctx)
			return err
		})
		require.NoError(t, err)
		require.Equal(t, int64(5), count())
	})
}

func TestDevMode(t *testing.T) {
	ctx := context.Background()
	buf := &bytes.Buffer{}
	db := newTestDb(t, WithDebugWriter(buf))

	_, err := db.GenSql().Append("SELECT id FROM article WHERE id = ?", 1).SelectLong(ctx)
	require.NoError(t, err)
	require.Empty(t, buf.String())

	db.SetDevMode(true)
	require.True(t, db.DevMode())

	_, err = db.GenSql().Append("SELECT id FROM article WHERE id IN ?", []int{1, 2}).SelectLongs(ctx)
	require.NoError(t, err)

	out := buf.String()
	require.Contains(t, out, "SELECT id FROM article WHERE id IN (?1, ?2)\n")
	require.Contains(t, out, "0: int: 1\n1: int: 2\n")
	require.Contains(t, out, "-- 2 rows in ")

	buf.Reset()
	_, err = db.GenSql().Append("UPDATE article SET title = ? WHERE id = ?", "x", 1).Update(ctx)
	require.NoError(t, err)
	require.Contains(t, buf.String(), "-- 1 rows in ")

	buf.Reset()
	_, _, err = SelectRow[Article](ctx, db.GenSql().Append("SELECT * FROM article"))
	var multi *MultiplicityError
	require.ErrorAs(t, err, &multi)
	require.Contains(t, buf.String(), "-- 1 rows in ")

	buf.Reset()
	require.NoError(t, db.StartTransaction(ctx))
	require.NoError(t, db.Rollback())
	require.Equal(t, "BEGIN\nROLLBACK\n", buf.String())
}

// discardPrinter drops everything it is given
type discardPrinter struct{}

func (discardPrinter) PrintQuery(string, ...any) {}

func TestSetDevModeConcurrently(t *testing.T) {
	ctx := context.Background()
	db, err := New(Config{Driver: "sqlite"},
		WithExecutor(noopExecutor{n: 1}),
		WithDebugPrinter(discardPrinter{}))
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(2)
		go func(on bool) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				db.SetDevMode(on)
				_ = db.DevMode()
			}
		}(i%2 == 0)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				_, _ = db.GenSql().Append("UPDATE t SET a = ?", j).Update(ctx)
			}
		}()
	}
	wg.Wait()
}

func TestExecutionErrors(t *testing.T) {
	ctx := context.Background()
	db := newTestDb(t)

	t.Run("bad sql", func(t *testing.T) {
		_, err := db.GenSql().Append("SELEC id FROM article").SelectLongs(ctx)
		var execErr *ExecutionError
		require.ErrorAs(t, err, &execErr)
		require.Equal(t, "select", execErr.Op)
		require.Equal(t, "SELEC id FROM article", execErr.Query)
	})

	t.Run("bad statement", func(t *testing.T) {
		_, err := db.GenSql().Append("UPDATE article SET title = ?").Update(ctx)
		var buildErr *BuildError
		require.ErrorAs(t, err, &buildErr)
	})

	t.Run("unbound", func(t *testing.T) {
		err := NewSql(nil).Append("SELECT 1").Run(ctx)
		require.ErrorIs(t, err, ErrUnbound)
	})

	t.Run("closed", func(t *testing.T) {
		closed := newTestDb(t)
		require.NoError(t, closed.Close())
		require.NoError(t, closed.Close())

		err := closed.Run(ctx, "SELECT 1")
		require.ErrorIs(t, err, ErrClosed)
		require.ErrorIs(t, closed.Connect(ctx), ErrClosed)
	})
}

func TestWithExecutor(t *testing.T) {
	ctx := context.Background()

	std, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { std.Close() })

	conn, err := std.Conn(ctx)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	db, err := New(Config{Driver: "sqlite"}, WithExecutor(NewExecutor(conn)))
	require.NoError(t, err)

	require.NoError(t, db.Run(ctx, "CREATE TABLE t (id INTEGER PRIMARY KEY, name TEXT)"))
	id, err := db.GenSql().Append("INSERT INTO t (name) VALUES (?)", "a").Insert(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(1), id)

	var execErr *ExecutionError
	require.ErrorAs(t, db.StartTransaction(ctx), &execErr)

	// the handle does not own the executor
	require.NoError(t, db.Close())
	require.NoError(t, conn.PingContext(ctx))
}
