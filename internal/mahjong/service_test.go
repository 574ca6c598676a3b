package mahjong

import (
	"fmt"
	"testing"

	"github.com/riichi-cafe/mahjong-cafe-backend/internal/platform/database"
	"github.com/riichi-cafe/mahjong-cafe-backend/internal/platform/metadata"
	"github.com/riichi-cafe/mahjong-cafe-backend/internal/user"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// setupLedgerTestDB 创建测试数据库（in-memory SQLite）并替换全局DB。
// Redis未初始化（RDB为nil），所有缓存路径自动跳过，排行榜查询回退到SQL。
func setupLedgerTestDB(t *testing.T) *gorm.DB {
	// 1. 使用 in-memory SQLite
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)

	// 内存数据库随连接销毁而消失，必须固定为单个连接
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	// 2. 迁移账本相关的全部表
	err = db.AutoMigrate(&user.User{}, &GameResult{}, &MonthlyAggregate{}, &metadata.Metadata{})
	require.NoError(t, err)

	database.DB = db
	return db
}

// createPlayer 创建一个普通测试用户并返回其记录。
func createPlayer(t *testing.T, db *gorm.DB, name string) *user.User {
	u := &user.User{
		UUID:         "uuid-" + name,
		DisplayName:  name,
		Email:        fmt.Sprintf("%s@example.com", name),
		PasswordHash: "x",
		Role:         user.RoleUser,
	}
	require.NoError(t, db.Create(u).Error)
	return u
}

func reloadUser(t *testing.T, db *gorm.DB, id uint) *user.User {
	var u user.User
	require.NoError(t, db.First(&u, id).Error)
	return &u
}

// ledgerSum 返回用户所有非测试账本记录的point之和。
func ledgerSum(t *testing.T, db *gorm.DB, userID uint) int {
	var sum *int
	err := db.Model(&GameResult{}).
		Select("SUM(point)").
		Where("user_id = ? AND is_test = ?", userID, false).
		Scan(&sum).Error
	require.NoError(t, err)
	if sum == nil {
		return 0
	}
	return *sum
}

func TestSubmitResultUpdatesRunningTotal(t *testing.T) {
	db := setupLedgerTestDB(t)
	player := createPlayer(t, db, "akagi")

	result, err := SubmitResult(SubmitInput{UserID: player.ID, Rank: 1, FinalScore: 32400})
	require.NoError(t, err)

	// point = floor(7400/1000) + 25 = 32
	assert.Equal(t, 32, result.Point)
	assert.False(t, result.IsTest)

	// Running Total 与雀庄经验在同一事务中更新
	after := reloadUser(t, db, player.ID)
	assert.Equal(t, 32, after.TotalPt)
	assert.Equal(t, mahjongExpPerGame, after.MahjongExp)
	assert.Equal(t, mahjongExpPerGame, after.TotalExp)

	// 提交后月度聚合已刷新
	var agg MonthlyAggregate
	require.NoError(t, db.Where("user_id = ?", player.ID).First(&agg).Error)
	assert.Equal(t, 32, agg.TotalPt)
	assert.Equal(t, 1, agg.GameCount)
}

func TestSubmitTestResultLeavesStatsUntouched(t *testing.T) {
	db := setupLedgerTestDB(t)
	player := createPlayer(t, db, "washizu")

	result, err := SubmitResult(SubmitInput{UserID: player.ID, Rank: 1, FinalScore: 48000, IsTest: true})
	require.NoError(t, err)
	assert.True(t, result.IsTest)

	// 测试记录进入账本，但不触及Running Total、经验和月度聚合
	after := reloadUser(t, db, player.ID)
	assert.Equal(t, 0, after.TotalPt)
	assert.Equal(t, 0, after.TotalExp)

	var count int64
	require.NoError(t, db.Model(&MonthlyAggregate{}).Count(&count).Error)
	assert.Equal(t, int64(0), count)
}

func TestSubmitResultValidation(t *testing.T) {
	db := setupLedgerTestDB(t)
	player := createPlayer(t, db, "nangou")

	_, err := SubmitResult(SubmitInput{UserID: player.ID, Rank: 0, FinalScore: 25000})
	assert.ErrorIs(t, err, ErrInvalidRank)

	_, err = SubmitResult(SubmitInput{UserID: player.ID, Rank: 5, FinalScore: 25000})
	assert.ErrorIs(t, err, ErrInvalidRank)

	// 不存在的用户导致整个事务回滚，账本中不留记录
	_, err = SubmitResult(SubmitInput{UserID: 9999, Rank: 1, FinalScore: 25000})
	assert.ErrorIs(t, err, ErrOwnerNotFound)

	var count int64
	require.NoError(t, db.Model(&GameResult{}).Count(&count).Error)
	assert.Equal(t, int64(0), count)
}

func intPtr(v int) *int { return &v }

func TestSubmitMatchPointSumInvariant(t *testing.T) {
	db := setupLedgerTestDB(t)
	players := make([]*user.User, 4)
	for i := range players {
		players[i] = createPlayer(t, db, fmt.Sprintf("player-%d", i+1))
	}

	results, err := SubmitMatch([]MatchEntry{
		{UserID: players[0].ID, Rank: 1, FinalScore: intPtr(41000)},
		{UserID: players[1].ID, Rank: 2, FinalScore: intPtr(29000)},
		{UserID: players[2].ID, Rank: 3, FinalScore: intPtr(20000)},
		{UserID: players[3].ID, Rank: 4, FinalScore: intPtr(10000)},
	}, false)
	require.NoError(t, err)
	require.Len(t, results, 4)

	// 持点都是整千且总和为100000时，差分部分相抵，
	// 四家point之和恒等于顺位加成之和15
	sum := 0
	for _, r := range results {
		sum += r.Point
	}
	assert.Equal(t, 15, sum)

	// 每家的Running Total都等于自己的point
	for i, r := range results {
		after := reloadUser(t, db, players[i].ID)
		assert.Equal(t, r.Point, after.TotalPt)
	}
}

func TestSubmitMatchInfersMissingScore(t *testing.T) {
	db := setupLedgerTestDB(t)
	players := make([]*user.User, 4)
	for i := range players {
		players[i] = createPlayer(t, db, fmt.Sprintf("infer-%d", i+1))
	}

	// 第三家持点省略，由其余三家推断：100000-41300-28700-10400=19600
	results, err := SubmitMatch([]MatchEntry{
		{UserID: players[0].ID, Rank: 1, FinalScore: intPtr(41300)},
		{UserID: players[1].ID, Rank: 2, FinalScore: intPtr(28700)},
		{UserID: players[2].ID, Rank: 3, FinalScore: nil},
		{UserID: players[3].ID, Rank: 4, FinalScore: intPtr(10400)},
	}, false)
	require.NoError(t, err)

	assert.Equal(t, 19600, results[2].FinalScore)
	assert.Equal(t, CalcPoint(3, 19600), results[2].Point)
}

func TestSubmitMatchValidation(t *testing.T) {
	db := setupLedgerTestDB(t)
	players := make([]*user.User, 4)
	for i := range players {
		players[i] = createPlayer(t, db, fmt.Sprintf("batch-%d", i+1))
	}

	full := func() []MatchEntry {
		return []MatchEntry{
			{UserID: players[0].ID, Rank: 1, FinalScore: intPtr(41300)},
			{UserID: players[1].ID, Rank: 2, FinalScore: intPtr(28700)},
			{UserID: players[2].ID, Rank: 3, FinalScore: intPtr(19600)},
			{UserID: players[3].ID, Rank: 4, FinalScore: intPtr(10400)},
		}
	}

	// 记录数不是四条
	_, err := SubmitMatch(full()[:3], false)
	assert.ErrorIs(t, err, ErrMatchSizeMismatch)

	// 顺位重复
	dup := full()
	dup[1].Rank = 1
	_, err = SubmitMatch(dup, false)
	assert.ErrorIs(t, err, ErrRanksNotCovered)

	// 省略超过一条
	twoMissing := full()
	twoMissing[0].FinalScore = nil
	twoMissing[1].FinalScore = nil
	_, err = SubmitMatch(twoMissing, false)
	assert.ErrorIs(t, err, ErrTooManyMissing)

	// 持点总和不等于100000
	badSum := full()
	badSum[0].FinalScore = intPtr(42300)
	_, err = SubmitMatch(badSum, false)
	assert.ErrorIs(t, err, ErrScoreSumMismatch)

	// 校验失败的批次不留任何账本记录
	var count int64
	require.NoError(t, db.Model(&GameResult{}).Count(&count).Error)
	assert.Equal(t, int64(0), count)
}

func TestSubmitMatchRollsBackWholeBatch(t *testing.T) {
	db := setupLedgerTestDB(t)
	players := make([]*user.User, 3)
	for i := range players {
		players[i] = createPlayer(t, db, fmt.Sprintf("rollback-%d", i+1))
	}

	// 第四家不存在，之前已写入的三条必须随事务一起回滚
	_, err := SubmitMatch([]MatchEntry{
		{UserID: players[0].ID, Rank: 1, FinalScore: intPtr(41300)},
		{UserID: players[1].ID, Rank: 2, FinalScore: intPtr(28700)},
		{UserID: players[2].ID, Rank: 3, FinalScore: intPtr(19600)},
		{UserID: 9999, Rank: 4, FinalScore: intPtr(10400)},
	}, false)
	assert.ErrorIs(t, err, ErrOwnerNotFound)

	var count int64
	require.NoError(t, db.Model(&GameResult{}).Count(&count).Error)
	assert.Equal(t, int64(0), count)

	for _, p := range players {
		after := reloadUser(t, db, p.ID)
		assert.Equal(t, 0, after.TotalPt)
	}
}

func TestCorrectResultSameOwnerAppliesDelta(t *testing.T) {
	db := setupLedgerTestDB(t)
	player := createPlayer(t, db, "correct-delta")

	result, err := SubmitResult(SubmitInput{UserID: player.ID, Rank: 2, FinalScore: 28700})
	require.NoError(t, err)
	oldPoint := result.Point

	// 录入顺位有误：2位改为4位，point重新导出
	updated, err := CorrectResult(result.ID, CorrectionPatch{Rank: intPtr(4)})
	require.NoError(t, err)
	assert.Equal(t, 4, updated.Rank)
	assert.Equal(t, CalcPoint(4, 28700), updated.Point)

	after := reloadUser(t, db, player.ID)
	assert.Equal(t, updated.Point, after.TotalPt)
	assert.NotEqual(t, oldPoint, updated.Point)
}

func TestCorrectResultMovesOwner(t *testing.T) {
	db := setupLedgerTestDB(t)
	alice := createPlayer(t, db, "owner-alice")
	bob := createPlayer(t, db, "owner-bob")

	result, err := SubmitResult(SubmitInput{UserID: alice.ID, Rank: 1, FinalScore: 41300})
	require.NoError(t, err)

	updated, err := CorrectResult(result.ID, CorrectionPatch{OwnerID: &bob.ID})
	require.NoError(t, err)
	assert.Equal(t, bob.ID, updated.UserID)

	// 原归属者被扣回，新归属者获得新point
	assert.Equal(t, 0, reloadUser(t, db, alice.ID).TotalPt)
	assert.Equal(t, updated.Point, reloadUser(t, db, bob.ID).TotalPt)

	// 修正后的月度聚合只剩新归属者
	var aggs []MonthlyAggregate
	require.NoError(t, db.Find(&aggs).Error)
	require.Len(t, aggs, 1)
	assert.Equal(t, bob.ID, aggs[0].UserID)
	assert.Equal(t, updated.Point, aggs[0].TotalPt)
}

func TestCorrectResultTestFlagRoundTrip(t *testing.T) {
	db := setupLedgerTestDB(t)
	player := createPlayer(t, db, "flag-roundtrip")

	result, err := SubmitResult(SubmitInput{UserID: player.ID, Rank: 1, FinalScore: 41300})
	require.NoError(t, err)
	point := result.Point

	// 真实改测试：point被扣除
	toTest := true
	_, err = CorrectResult(result.ID, CorrectionPatch{IsTest: &toTest})
	require.NoError(t, err)
	assert.Equal(t, 0, reloadUser(t, db, player.ID).TotalPt)

	// 测试改回真实：point重新计入，往返后Running Total精确还原
	toReal := false
	_, err = CorrectResult(result.ID, CorrectionPatch{IsTest: &toReal})
	require.NoError(t, err)
	assert.Equal(t, point, reloadUser(t, db, player.ID).TotalPt)
}

func TestCorrectResultTestToTestIsNoop(t *testing.T) {
	db := setupLedgerTestDB(t)
	player := createPlayer(t, db, "test-noop")

	result, err := SubmitResult(SubmitInput{UserID: player.ID, Rank: 3, FinalScore: 18000, IsTest: true})
	require.NoError(t, err)

	updated, err := CorrectResult(result.ID, CorrectionPatch{FinalScore: intPtr(24000)})
	require.NoError(t, err)
	assert.True(t, updated.IsTest)
	assert.Equal(t, CalcPoint(3, 24000), updated.Point)

	// 两侧都是测试记录，Running Total保持为零
	assert.Equal(t, 0, reloadUser(t, db, player.ID).TotalPt)
}

// 换主修正涉及两名所有者，刷新集合必须同时覆盖旧主和新主。
func TestTouchedOwnerIDs(t *testing.T) {
	assert.Equal(t, []uint{7}, touchedOwnerIDs(7, 7))
	assert.Equal(t, []uint{7, 9}, touchedOwnerIDs(7, 9))
}

// point恰好为零的记录换主时，零增量更新仍必须校验新所有者存在。
func TestCorrectResultRejectsGhostOwnerOnZeroPoint(t *testing.T) {
	db := setupLedgerTestDB(t)
	player := createPlayer(t, db, "zero-point")

	// 三位持点30000：floor(5000/1000)-5 = 0
	result, err := SubmitResult(SubmitInput{UserID: player.ID, Rank: 3, FinalScore: 30000})
	require.NoError(t, err)
	require.Equal(t, 0, result.Point)

	ghost := uint(424242)
	_, err = CorrectResult(result.ID, CorrectionPatch{OwnerID: &ghost})
	assert.ErrorIs(t, err, ErrOwnerNotFound)

	// 记录保持原主
	var unchanged GameResult
	require.NoError(t, db.First(&unchanged, result.ID).Error)
	assert.Equal(t, player.ID, unchanged.UserID)
}

// 测试记录不调节Running Total，其换主同样不得指向不存在的用户。
func TestCorrectTestResultRejectsGhostOwner(t *testing.T) {
	db := setupLedgerTestDB(t)
	player := createPlayer(t, db, "test-ghost")

	result, err := SubmitResult(SubmitInput{UserID: player.ID, Rank: 2, FinalScore: 30000, IsTest: true})
	require.NoError(t, err)

	ghost := uint(424242)
	_, err = CorrectResult(result.ID, CorrectionPatch{OwnerID: &ghost})
	assert.ErrorIs(t, err, ErrOwnerNotFound)

	var unchanged GameResult
	require.NoError(t, db.First(&unchanged, result.ID).Error)
	assert.Equal(t, player.ID, unchanged.UserID)
}

func TestCorrectResultValidation(t *testing.T) {
	db := setupLedgerTestDB(t)
	player := createPlayer(t, db, "correct-invalid")

	result, err := SubmitResult(SubmitInput{UserID: player.ID, Rank: 1, FinalScore: 41300})
	require.NoError(t, err)

	_, err = CorrectResult(result.ID, CorrectionPatch{Rank: intPtr(7)})
	assert.ErrorIs(t, err, ErrInvalidRank)

	_, err = CorrectResult(9999, CorrectionPatch{Rank: intPtr(2)})
	assert.ErrorIs(t, err, ErrResultNotFound)

	badOwner := uint(9999)
	_, err = CorrectResult(result.ID, CorrectionPatch{OwnerID: &badOwner})
	assert.ErrorIs(t, err, ErrOwnerNotFound)

	// 失败的修正不改变记录和Running Total
	var unchanged GameResult
	require.NoError(t, db.First(&unchanged, result.ID).Error)
	assert.Equal(t, result.Point, unchanged.Point)
	assert.Equal(t, player.ID, unchanged.UserID)
	assert.Equal(t, result.Point, reloadUser(t, db, player.ID).TotalPt)
}

func TestDeleteResultReconciles(t *testing.T) {
	db := setupLedgerTestDB(t)
	player := createPlayer(t, db, "delete-me")

	real, err := SubmitResult(SubmitInput{UserID: player.ID, Rank: 1, FinalScore: 41300})
	require.NoError(t, err)
	test, err := SubmitResult(SubmitInput{UserID: player.ID, Rank: 4, FinalScore: 5000, IsTest: true})
	require.NoError(t, err)

	// 删除真实记录扣回其point
	require.NoError(t, DeleteResult(real.ID))
	assert.Equal(t, 0, reloadUser(t, db, player.ID).TotalPt)

	// 删除测试记录不触及Running Total
	require.NoError(t, DeleteResult(test.ID))
	assert.Equal(t, 0, reloadUser(t, db, player.ID).TotalPt)

	assert.ErrorIs(t, DeleteResult(real.ID), ErrResultNotFound)

	var count int64
	require.NoError(t, db.Model(&GameResult{}).Count(&count).Error)
	assert.Equal(t, int64(0), count)
}

// 任意一串提交、修正、删除之后，Running Total必须与账本中
// 非测试记录的point之和完全一致。
func TestRunningTotalMatchesLedgerSum(t *testing.T) {
	db := setupLedgerTestDB(t)
	alice := createPlayer(t, db, "ledger-alice")
	bob := createPlayer(t, db, "ledger-bob")

	r1, err := SubmitResult(SubmitInput{UserID: alice.ID, Rank: 1, FinalScore: 41300})
	require.NoError(t, err)
	r2, err := SubmitResult(SubmitInput{UserID: alice.ID, Rank: 3, FinalScore: 18000})
	require.NoError(t, err)
	_, err = SubmitResult(SubmitInput{UserID: bob.ID, Rank: 2, FinalScore: 26900})
	require.NoError(t, err)
	_, err = SubmitResult(SubmitInput{UserID: alice.ID, Rank: 4, FinalScore: 9000, IsTest: true})
	require.NoError(t, err)

	_, err = CorrectResult(r1.ID, CorrectionPatch{FinalScore: intPtr(38900)})
	require.NoError(t, err)
	_, err = CorrectResult(r2.ID, CorrectionPatch{OwnerID: &bob.ID})
	require.NoError(t, err)
	require.NoError(t, DeleteResult(r1.ID))

	for _, id := range []uint{alice.ID, bob.ID} {
		assert.Equal(t, ledgerSum(t, db, id), reloadUser(t, db, id).TotalPt)
	}
}
