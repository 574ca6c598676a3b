package highfive

import (
	"errors"
	"fmt"

	"github.com/riichi-cafe/mahjong-cafe-backend/internal/platform/database"
	"github.com/riichi-cafe/mahjong-cafe-backend/internal/user"
	"github.com/riichi-cafe/mahjong-cafe-backend/pkg/jstime"
	"gorm.io/gorm"
)

var (
	// ErrAlreadySent 表示今天已经和这位用户击过掌了。
	ErrAlreadySent = errors.New("今天已经和这位用户击过掌了")

	// ErrSelfHighfive 表示不能和自己击掌。
	ErrSelfHighfive = errors.New("不能和自己击掌")
)

// 击掌双方获得的社交经验。
const expPerHighfive = 5

// Send 记录一次击掌：写入记录并为双方发放社交经验，同一事务完成。
// 唯一约束是"每对用户每日一次"的最终仲裁者。
func Send(senderID uint, receiverName string) error {
	receiver, err := user.FindByName(receiverName)
	if err != nil {
		return err
	}
	if receiver.ID == senderID {
		return ErrSelfHighfive
	}

	err = database.DB.Transaction(func(tx *gorm.DB) error {
		record := Highfive{
			SenderID:   senderID,
			ReceiverID: receiver.ID,
			Day:        jstime.DayString(jstime.Now()),
		}
		if err := tx.Create(&record).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return ErrAlreadySent
			}
			return fmt.Errorf("无法写入击掌记录: %w", err)
		}

		if err := user.AddExperienceTx(tx, senderID, user.CategorySocial, expPerHighfive); err != nil {
			return err
		}
		return user.AddExperienceTx(tx, receiver.ID, user.CategorySocial, expPerHighfive)
	})
	if err != nil {
		return err
	}

	user.RefreshExpCache(senderID)
	user.RefreshExpCache(receiver.ID)
	return nil
}

// ReceivedSummary 是击掌接收统计。
type ReceivedSummary struct {
	Today int64 `json:"today"`
	Total int64 `json:"total"`
}

// GetReceived 返回用户收到的击掌统计。
func GetReceived(userID uint) (*ReceivedSummary, error) {
	var summary ReceivedSummary

	err := database.DB.Model(&Highfive{}).
		Where("receiver_id = ?", userID).
		Count(&summary.Total).Error
	if err != nil {
		return nil, fmt.Errorf("无法统计击掌记录: %w", err)
	}

	err = database.DB.Model(&Highfive{}).
		Where("receiver_id = ? AND day = ?", userID, jstime.DayString(jstime.Now())).
		Count(&summary.Today).Error
	if err != nil {
		return nil, fmt.Errorf("无法统计当日击掌记录: %w", err)
	}

	return &summary, nil
}
