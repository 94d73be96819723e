package tasks

import (
	"fmt"
	"time"

	"serotonyl.ru/ascenso-bot/internal/common"
)

// ShareText — текст репоста с реферальной ссылкой и недельным кодом.
// Админ сверяет код на скриншоте с WeeklyCode заявки.
func ShareText(baseURL string, userID int64, now time.Time) string {
	return fmt.Sprintf(
		"🚀 Пользуюсь ботом сигналов — очень рекомендую.\n\n"+
			"✅ Присоединяйся: %s?start=ref_%d\n\n"+
			"💡 Начни с Free и поднимайся до Plus/Premium.\n"+
			"🔐 Код недели: %s",
		baseURL, userID, common.WeeklyCode(now),
	)
}
