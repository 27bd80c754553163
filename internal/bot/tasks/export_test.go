package tasks

var NewHistoryRetentionTaskAt = newHistoryRetentionTaskAt
