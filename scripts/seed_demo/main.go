package main

import (
	"fmt"
	"log"
	"time"

	"github.com/habitlog/internal/config"
	"github.com/habitlog/internal/dateutil"
	"github.com/habitlog/internal/db"
	"golang.org/x/crypto/bcrypt"
)

// 演示数据生成器：一个用户、三个习惯、过去 90 天形状各异的打卡序列，
// 专门留出断签、未完成与今日缺口，便于核对连胜与完成率的边界
func main() {
	cfg := config.Load()
	if err := db.Init(cfg.DatabasePath); err != nil {
		log.Fatal("数据库初始化失败:", err)
	}

	fmt.Println("开始生成演示数据...")

	user := createDemoUser()
	habits := createDemoHabits(user.ID)
	seedLogs(user.ID, habits)

	fmt.Println("演示数据生成完成")
}

func createDemoUser() db.User {
	hashedPassword, _ := bcrypt.GenerateFromPassword([]byte("demo123"), bcrypt.DefaultCost)
	user := db.User{Username: "demo", Password: string(hashedPassword)}

	if err := db.DB.Where("username = ?", user.Username).FirstOrCreate(&user).Error; err != nil {
		log.Fatal("创建演示用户失败:", err)
	}
	fmt.Printf("演示用户: %s / demo123\n", user.Username)
	return user
}

func createDemoHabits(userID uint) []db.Habit {
	habits := []db.Habit{
		{UserID: userID, Title: "晨跑", Description: "每天 **5 公里**", Color: "#e05d44", Icon: "run", Frequency: "daily"},
		{UserID: userID, Title: "阅读", Description: "睡前半小时", Color: "#4f8dfd", Icon: "book", Frequency: "daily"},
		{UserID: userID, Title: "写周记", Description: "", Color: "#2fa84f", Icon: "pen", Frequency: "weekly"},
	}

	for i := range habits {
		if err := db.DB.Where("user_id = ? AND title = ?", userID, habits[i].Title).
			FirstOrCreate(&habits[i]).Error; err != nil {
			log.Fatal("创建演示习惯失败:", err)
		}
	}
	return habits
}

func seedLogs(userID uint, habits []db.Habit) {
	today := dateutil.Today()

	// 晨跑：连续 21 天，但第 8 天明确未完成，制造一次断签
	for offset := 0; offset < 21; offset++ {
		completed := offset != 7
		upsertLog(userID, habits[0].ID, today.AddDate(0, 0, -offset), completed)
	}

	// 阅读：隔天打卡，今天尚未完成
	for offset := 1; offset < 60; offset += 2 {
		upsertLog(userID, habits[1].ID, today.AddDate(0, 0, -offset), true)
	}

	// 写周记：每周一次，跨过整个季度
	for offset := 0; offset < 90; offset += 7 {
		upsertLog(userID, habits[2].ID, today.AddDate(0, 0, -offset), true)
	}
}

func upsertLog(userID, habitID uint, logDate time.Time, completed bool) {
	record := db.HabitLog{
		HabitID:   habitID,
		UserID:    userID,
		LogDate:   dateutil.Midnight(logDate),
		Completed: completed,
	}
	if err := db.DB.Where("habit_id = ? AND log_date = ?", habitID, record.LogDate).
		Assign(map[string]interface{}{"completed": completed, "user_id": userID}).
		FirstOrCreate(&record).Error; err != nil {
		log.Fatal("写入演示打卡失败:", err)
	}
}
