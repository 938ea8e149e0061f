package postgres

import (
	"fmt"
	"regexp"

	"gorm.io/gorm"
)

var channelName = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

const notifyChangeFunction = `
CREATE OR REPLACE FUNCTION notify_document_change() RETURNS trigger AS $$
BEGIN
	PERFORM pg_notify(TG_ARGV[0], json_build_object(
		'collection', TG_TABLE_NAME,
		'op', lower(TG_OP),
		'before', CASE WHEN TG_OP IN ('UPDATE', 'DELETE') THEN row_to_json(OLD) END,
		'after', CASE WHEN TG_OP IN ('INSERT', 'UPDATE') THEN row_to_json(NEW) END
	)::text);
	RETURN NULL;
END;
$$ LANGUAGE plpgsql`

// InstallChangeTriggers makes every mutation of events and every update of reports
// publish a change message on the given NOTIFY channel.
func InstallChangeTriggers(db *gorm.DB, channel string) error {
	if !channelName.MatchString(channel) {
		return fmt.Errorf("invalid notify channel %q", channel)
	}

	statements := []string{
		notifyChangeFunction,
		`DROP TRIGGER IF EXISTS events_notify_change ON events`,
		fmt.Sprintf(`CREATE TRIGGER events_notify_change AFTER INSERT OR UPDATE OR DELETE ON events
			FOR EACH ROW EXECUTE FUNCTION notify_document_change('%s')`, channel),
		`DROP TRIGGER IF EXISTS reports_notify_change ON reports`,
		fmt.Sprintf(`CREATE TRIGGER reports_notify_change AFTER UPDATE ON reports
			FOR EACH ROW EXECUTE FUNCTION notify_document_change('%s')`, channel),
	}

	return db.Transaction(func(tx *gorm.DB) error {
		for _, stmt := range statements {
			if err := tx.Exec(stmt).Error; err != nil {
				return fmt.Errorf("install change triggers: %w", err)
			}
		}
		return nil
	})
}
