// Package agent implements the three cooperating personas of the exam
// simulation.
//
//   - PatientAgent role-plays the case's patient from its persona
//     instructions and a windowed view of the conversation.
//   - ExaminerAgent answers findings requests two-tiered: authored case
//     material verbatim when present, a generated plausible-normal finding
//     flagged non-authoritative otherwise.
//   - FeedbackAgent scores a finished transcript against the case's
//     reference approach and assembles the session's feedback report.
//
// Agents are stateless between calls; all per-session working state lives in
// the orchestrator-owned core.AgentState and the session turn log.
package agent
