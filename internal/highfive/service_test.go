package highfive

import (
	"fmt"
	"testing"

	"github.com/riichi-cafe/mahjong-cafe-backend/internal/platform/database"
	"github.com/riichi-cafe/mahjong-cafe-backend/internal/user"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// setupHighfiveTestDB 创建测试数据库（in-memory SQLite）并替换全局DB。
func setupHighfiveTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)

	// 内存数据库随连接销毁而消失，必须固定为单个连接
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	err = db.AutoMigrate(&user.User{}, &Highfive{})
	require.NoError(t, err)

	database.DB = db
	return db
}

func createMember(t *testing.T, db *gorm.DB, name string) *user.User {
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

func TestSendGrantsExperienceToBothSides(t *testing.T) {
	db := setupHighfiveTestDB(t)
	sender := createMember(t, db, "sender")
	receiver := createMember(t, db, "receiver")

	require.NoError(t, Send(sender.ID, "receiver"))

	var s, r user.User
	require.NoError(t, db.First(&s, sender.ID).Error)
	require.NoError(t, db.First(&r, receiver.ID).Error)
	assert.Equal(t, expPerHighfive, s.SocialExp)
	assert.Equal(t, expPerHighfive, r.SocialExp)
	assert.Equal(t, expPerHighfive, s.TotalExp)
	assert.Equal(t, expPerHighfive, r.TotalExp)
}

func TestSendOncePerPairPerDay(t *testing.T) {
	db := setupHighfiveTestDB(t)
	sender := createMember(t, db, "alice")
	receiver := createMember(t, db, "bob")

	require.NoError(t, Send(sender.ID, "bob"))

	// 同一对用户同日重复击掌被唯一约束拒绝
	err := Send(sender.ID, "bob")
	assert.ErrorIs(t, err, ErrAlreadySent)

	// 方向相反算另一对，允许
	require.NoError(t, Send(receiver.ID, "alice"))

	// 被拒的击掌不发经验
	var s user.User
	require.NoError(t, db.First(&s, sender.ID).Error)
	assert.Equal(t, 2*expPerHighfive, s.SocialExp)
}

func TestSendValidation(t *testing.T) {
	db := setupHighfiveTestDB(t)
	sender := createMember(t, db, "loner")

	err := Send(sender.ID, "loner")
	assert.ErrorIs(t, err, ErrSelfHighfive)

	err = Send(sender.ID, "nobody")
	assert.ErrorIs(t, err, user.ErrUserNotFound)
}

func TestGetReceivedCounts(t *testing.T) {
	db := setupHighfiveTestDB(t)
	a := createMember(t, db, "count-a")
	b := createMember(t, db, "count-b")
	c := createMember(t, db, "count-c")

	require.NoError(t, Send(a.ID, "count-c"))
	require.NoError(t, Send(b.ID, "count-c"))

	// 往日收到的一条只计入Total，不计入Today
	require.NoError(t, db.Create(&Highfive{SenderID: b.ID, ReceiverID: c.ID, Day: "2020-01-01"}).Error)

	summary, err := GetReceived(c.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), summary.Today)
	assert.Equal(t, int64(3), summary.Total)

	empty, err := GetReceived(a.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), empty.Total)
}
