package mahjong

import (
	"testing"
	"time"

	"github.com/riichi-cafe/mahjong-cafe-backend/internal/user"
	"github.com/riichi-cafe/mahjong-cafe-backend/pkg/jstime"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// seedResult 直接向账本写入一条记录（绕过服务层），用于构造历史数据。
func seedResult(t *testing.T, db *gorm.DB, userID uint, rank, score int, isTest bool, at time.Time) {
	r := GameResult{
		UserID:     userID,
		Rank:       rank,
		FinalScore: score,
		Point:      CalcPoint(rank, score),
		IsTest:     isTest,
		CreatedAt:  at,
	}
	require.NoError(t, db.Create(&r).Error)
}

func TestRefreshMonthlyRepairsCorruptedAggregate(t *testing.T) {
	db := setupLedgerTestDB(t)
	player := createPlayer(t, db, "repair-me")

	_, err := SubmitResult(SubmitInput{UserID: player.ID, Rank: 1, FinalScore: 41000})
	require.NoError(t, err)
	month := jstime.MonthString(jstime.Now())

	// 人为破坏聚合行
	require.NoError(t, db.Model(&MonthlyAggregate{}).
		Where("user_id = ? AND month = ?", player.ID, month).
		Updates(map[string]interface{}{"total_pt": -777, "game_count": 42}).Error)

	// 重算以账本为准，覆盖被破坏的值
	require.NoError(t, RefreshMonthly(month))

	var agg MonthlyAggregate
	require.NoError(t, db.Where("user_id = ? AND month = ?", player.ID, month).First(&agg).Error)
	assert.Equal(t, 41, agg.TotalPt)
	assert.Equal(t, 1, agg.GameCount)
}

func TestRefreshMonthlyIgnoresTestAndOtherMonths(t *testing.T) {
	db := setupLedgerTestDB(t)
	player := createPlayer(t, db, "scoped")

	loc := jstime.Location()
	inMonth := time.Date(2026, 3, 15, 12, 0, 0, 0, loc)
	seedResult(t, db, player.ID, 1, 41000, false, inMonth)
	seedResult(t, db, player.ID, 2, 29000, true, inMonth)
	seedResult(t, db, player.ID, 3, 20000, false, time.Date(2026, 4, 1, 0, 30, 0, 0, loc))

	require.NoError(t, RefreshMonthly("2026-03"))

	// 测试记录和四月的记录都不计入三月聚合
	var agg MonthlyAggregate
	require.NoError(t, db.Where("user_id = ? AND month = ?", player.ID, "2026-03").First(&agg).Error)
	assert.Equal(t, 41, agg.TotalPt)
	assert.Equal(t, 1, agg.GameCount)
}

func TestMonthlyRankingOrderAndTieBreak(t *testing.T) {
	db := setupLedgerTestDB(t)
	high := createPlayer(t, db, "rank-high")
	tieA := createPlayer(t, db, "rank-tie-a")
	tieB := createPlayer(t, db, "rank-tie-b")

	loc := jstime.Location()
	at := time.Date(2026, 5, 10, 20, 0, 0, 0, loc)
	seedResult(t, db, high.ID, 1, 41000, false, at)
	seedResult(t, db, tieA.ID, 2, 29000, false, at)
	seedResult(t, db, tieB.ID, 2, 29000, false, at)
	require.NoError(t, RefreshMonthly("2026-05"))

	entries, err := GetMonthlyRanking("2026-05")
	require.NoError(t, err)
	require.Len(t, entries, 3)

	// 积分降序，同分按用户ID升序
	assert.Equal(t, high.ID, entries[0].UserID)
	assert.Equal(t, tieA.ID, entries[1].UserID)
	assert.Equal(t, tieB.ID, entries[2].UserID)
	assert.Equal(t, "rank-high", entries[0].DisplayName)
	assert.Equal(t, entries[1].TotalPt, entries[2].TotalPt)
}

// Redis读取路径读出后重排，同分次序必须与SQL路径一致：积分降序，同分按ID升序。
func TestSortRankingEntriesMatchesSQLOrder(t *testing.T) {
	entries := []RankingEntry{
		{UserID: 12, TotalPt: 10},
		{UserID: 3, TotalPt: 25},
		{UserID: 2, TotalPt: 10},
		{UserID: 8, TotalPt: -5},
	}
	sortRankingEntries(entries)

	got := make([]uint, 0, len(entries))
	for _, e := range entries {
		got = append(got, e.UserID)
	}
	assert.Equal(t, []uint{3, 2, 12, 8}, got)
}

func TestLifetimeRankingExclusions(t *testing.T) {
	db := setupLedgerTestDB(t)
	player := createPlayer(t, db, "life-player")
	testOnly := createPlayer(t, db, "life-test-only")
	createPlayer(t, db, "life-never-played")

	admin := &user.User{
		UUID: "uuid-life-admin", DisplayName: "life-admin",
		Email: "life-admin@example.com", PasswordHash: "x", Role: user.RoleAdmin,
	}
	require.NoError(t, db.Create(admin).Error)

	_, err := SubmitResult(SubmitInput{UserID: player.ID, Rank: 1, FinalScore: 41000})
	require.NoError(t, err)
	_, err = SubmitResult(SubmitInput{UserID: testOnly.ID, Rank: 2, FinalScore: 29000, IsTest: true})
	require.NoError(t, err)
	_, err = SubmitResult(SubmitInput{UserID: admin.ID, Rank: 3, FinalScore: 20000})
	require.NoError(t, err)

	entries, err := GetLifetimeRanking(0)
	require.NoError(t, err)

	// 管理员、只有测试记录的用户、从未对局的用户都不出现
	require.Len(t, entries, 1)
	assert.Equal(t, player.ID, entries[0].UserID)
	assert.Equal(t, 41, entries[0].TotalPt)
	assert.Equal(t, 1, entries[0].GameCount)
}

func TestRebuildAllMonthlySpansMonths(t *testing.T) {
	db := setupLedgerTestDB(t)
	player := createPlayer(t, db, "rebuild-span")

	loc := jstime.Location()
	seedResult(t, db, player.ID, 1, 41000, false, time.Date(2026, 1, 20, 19, 0, 0, 0, loc))
	seedResult(t, db, player.ID, 4, 10000, false, time.Date(2026, 1, 25, 21, 0, 0, 0, loc))
	seedResult(t, db, player.ID, 2, 29000, false, time.Date(2026, 3, 2, 18, 0, 0, 0, loc))

	// 一条被破坏的陈旧聚合行，重建后必须消失
	require.NoError(t, db.Create(&MonthlyAggregate{UserID: 9999, Month: "2025-12", TotalPt: 100}).Error)

	require.NoError(t, RebuildAllMonthly())

	var aggs []MonthlyAggregate
	require.NoError(t, db.Order("month ASC").Find(&aggs).Error)
	require.Len(t, aggs, 2)

	assert.Equal(t, "2026-01", aggs[0].Month)
	assert.Equal(t, CalcPoint(1, 41000)+CalcPoint(4, 10000), aggs[0].TotalPt)
	assert.Equal(t, 2, aggs[0].GameCount)

	assert.Equal(t, "2026-03", aggs[1].Month)
	assert.Equal(t, CalcPoint(2, 29000), aggs[1].TotalPt)
	assert.Equal(t, 1, aggs[1].GameCount)
}

func TestListGamesFilters(t *testing.T) {
	db := setupLedgerTestDB(t)
	player := createPlayer(t, db, "audit-player")

	loc := jstime.Location()
	seedResult(t, db, player.ID, 1, 41000, false, time.Date(2026, 6, 1, 12, 0, 0, 0, loc))
	seedResult(t, db, player.ID, 2, 29000, true, time.Date(2026, 6, 2, 12, 0, 0, 0, loc))
	seedResult(t, db, player.ID, 3, 20000, false, time.Date(2026, 7, 1, 12, 0, 0, 0, loc))

	// 按月份过滤
	rows, err := ListGames("2026-06", nil, 0)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	// 最新在前
	assert.Equal(t, 2, rows[0].Rank)
	assert.Equal(t, "audit-player", rows[0].DisplayName)

	// 叠加测试标记过滤
	isTest := false
	rows, err = ListGames("2026-06", &isTest, 0)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, 1, rows[0].Rank)

	// 非法月份
	_, err = ListGames("2026-13", nil, 0)
	assert.Error(t, err)

	// 不过滤时返回全部
	rows, err = ListGames("", nil, 0)
	require.NoError(t, err)
	assert.Len(t, rows, 3)
}
