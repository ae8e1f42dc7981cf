package notify

import "fmt"

// Message bodies sent after a failed follow-up call, keyed by failure
// reason. Each apologizes for the missed contact and tells the customer how
// to reach the service center back.

const templateDefault = "[오토케어] %s 고객님, 서비스 확인 전화를 드렸으나 연결되지 못했습니다. 편하신 시간에 회신 부탁드립니다."

var failureTemplates = map[string]string{
	"customer_unavailable": "[오토케어] %s 고객님, 연락을 드렸으나 부재중이셨습니다. 편하신 시간에 회신 주시면 서비스 만족도를 확인해 드리겠습니다.",
	"customer_busy":        "[오토케어] %s 고객님, 통화 중이셔서 연결되지 못했습니다. 편하신 시간에 다시 연락드리겠습니다.",
	"technical_issue":      "[오토케어] %s 고객님, 통신 문제로 전화 연결이 원활하지 않았습니다. 불편을 드려 죄송합니다. 다시 연락드리겠습니다.",
	"customer_refused":     "[오토케어] %s 고객님, 소중한 의견 감사합니다. 더 나은 서비스로 보답하겠습니다.",
	"staff_unavailable":    "[오토케어] %s 고객님, 담당자 부재로 예정된 전화를 드리지 못했습니다. 죄송합니다. 빠른 시일 내 연락드리겠습니다.",
	"system_error":         "[오토케어] %s 고객님, 시스템 문제로 전화 연결에 실패했습니다. 불편을 드려 죄송합니다.",
}

// callbackTemplate confirms a rescheduled contact.
const callbackTemplate = "[오토케어] %s 고객님, %s에 다시 연락드릴 예정입니다. 일정 변경이 필요하시면 회신 부탁드립니다."

// finalAttemptTemplate announces the last retry of a callback chain.
const finalAttemptTemplate = "[오토케어] %s 고객님, 서비스 확인 관련하여 마지막으로 연락드립니다. 추가 문의사항이 있으시면 회신 부탁드립니다."

// nextCycleTemplate tells the customer contact resumes at the next service
// cycle. The when argument is a year-month.
const nextCycleTemplate = "[오토케어] %s 고객님, 다음 서비스 시기(%s)에 다시 안내드리겠습니다. 이용해 주셔서 감사합니다."

// FailedCallBody renders the SMS body for a failed call.
func FailedCallBody(customerName, reason string) string {
	tmpl, ok := failureTemplates[reason]
	if !ok {
		tmpl = templateDefault
	}
	return fmt.Sprintf(tmpl, customerName)
}

// CallbackBody renders the SMS body confirming a scheduled callback.
func CallbackBody(customerName, when string) string {
	return fmt.Sprintf(callbackTemplate, customerName, when)
}

// FinalAttemptBody renders the last-retry notice.
func FinalAttemptBody(customerName string) string {
	return fmt.Sprintf(finalAttemptTemplate, customerName)
}

// NextCycleBody renders the next-cycle deferral notice.
func NextCycleBody(customerName, when string) string {
	return fmt.Sprintf(nextCycleTemplate, customerName, when)
}
