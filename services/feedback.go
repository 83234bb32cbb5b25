package services

import (
	"strings"

	"dietChallengeAPI/internal/scoring"
)

const (
	msgBasicSuccess        = "素晴らしい！今日はダイエット大成功です。明日も頑張ってください！"
	msgBasicFailure        = "今日は目標を達成できませんでしたが、勇気を出して記録したことが重要です！記録を続けることこそが、成功への道筋です。明日も記録を続けましょう！"
	msgIntermediateSuccess = "素晴らしい！今日はダイエット大成功です（ダイエット成功日として記録）。明日も頑張ってください！"
	msgIntermediateFailure = "今日は一部のダイエット法で目標を達成できませんでしたが、記録することが重要です。中級プランでは全ダイエット法を達成した日のみが返金対象となります。明日は全て達成を目指しましょう！"
	msgAdvancedSuccess     = "素晴らしい！今日もダイエット大成功です。上級プランでは毎日の達成が重要です。この調子で30日間頑張り続けましょう！"
	msgAdvancedFailure     = "今日は目標を達成できませんでした。上級プランでは一度でも失敗があると返金対象外となりますので、明日からより一層気をつけて取り組みましょう！"
	msgGameOver            = "ゲームオーバー！上級プランでは一度の失敗も許されません。チャレンジは終了です。"
	msgAllDaysRecorded     = "30日間の記録が完了しました！チャレンジ達成おめでとうございます。"

	countermeasureHeader = "対策メモ:"
)

// FeedbackMessage picks the message shown after a record is saved.
func FeedbackMessage(plan scoring.Plan, allSucceeded bool, reason scoring.CompletionReason) string {
	switch {
	case reason.IsGameOver():
		return msgGameOver
	case reason == scoring.ReasonAllDaysRecorded:
		return msgAllDaysRecorded
	}

	switch plan {
	case scoring.PlanIntermediate:
		if allSucceeded {
			return msgIntermediateSuccess
		}
		return msgIntermediateFailure
	case scoring.PlanAdvanced:
		if allSucceeded {
			return msgAdvancedSuccess
		}
		return msgAdvancedFailure
	default:
		if allSucceeded {
			return msgBasicSuccess
		}
		return msgBasicFailure
	}
}

// Countermeasure is a memo written for one failed habit.
type Countermeasure struct {
	HabitName string
	Memo      string
}

// ComposeMoodComment appends the countermeasure memos of failed habits to the comment.
func ComposeMoodComment(base string, memos []Countermeasure) string {
	base = strings.TrimSpace(base)

	var lines []string
	for _, m := range memos {
		memo := strings.TrimSpace(m.Memo)
		if memo == "" {
			continue
		}
		lines = append(lines, "・"+m.HabitName+": "+memo)
	}
	if len(lines) == 0 {
		return base
	}

	summary := countermeasureHeader + "\n" + strings.Join(lines, "\n")
	if base == "" {
		return summary
	}
	return base + "\n\n" + summary
}
