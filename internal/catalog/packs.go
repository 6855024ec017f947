package catalog

import "sync"

// DefaultCatalog returns the catalog loaded from the bundled pack table.
// Built once and cached: the catalog is immutable and process-scoped
// (spec.md §4.1), matching the teacher's GetDefaultEngine singleton
// (internal/core/patterns.go).
func DefaultCatalog() *Catalog {
	defaultOnce.Do(func() {
		defaultCatalog = Load(defaultPackSpecs)
	})
	return defaultCatalog
}

var (
	defaultOnce    sync.Once
	defaultCatalog *Catalog
)

// defaultPackSpecs is the bundled static table. Regexes are matched
// case-insensitively against the executable span of a segment unless
// fullSegment is set. Tier assignment and trigger-keyword sets are the
// generalization of the teacher's four flat tiers (safe/critical/
// dangerous/caution, internal/core/patterns.go) into the spec's
// pack/tier/rule_id model.
var defaultPackSpecs = []packSpec{
	{
		id:   "core.filesystem",
		tier: TierCore,
		keywords: []string{"rm", "shred", "dd", "mkfs", "fdisk", "parted", "chmod", "chown"},
		safe: []specPattern{
			{name: "rm-log", regex: `(?i)^rm\s+.*\.log$`, mode: ModeLog},
			{name: "rm-tmp", regex: `(?i)^rm\s+.*\.tmp$`, mode: ModeLog},
			{name: "rm-bak", regex: `(?i)^rm\s+.*\.bak$`, mode: ModeLog},
			{name: "rm-tmpdir", regex: `(?i)^rm\s+(-[a-zA-Z]+\s+)*/tmp/`, mode: ModeLog},
			{name: "rm-build-cache", regex: `(?i)^rm\s+(-[a-zA-Z]+\s+)*\S*/(build-cache|node_modules|dist|\.cache)(/|$)`, mode: ModeLog},
		},
		destructive: []specPattern{
			{name: "rm-root-system-path", regex: `(?i)^rm\s+(-[rRfF]+\s+)+/(boot|dev|etc|home|lib|lib64|media|mnt|opt|proc|root|run|sbin|srv|sys|usr|var)(/|\s|$)`, severity: SeverityCritical, reason: "recursive force-delete under a root system directory", mode: ModeDeny},
			{name: "rm-root", regex: `(?i)^rm\s+(-[rRfF]+\s+)+/(\s|$)`, severity: SeverityCritical, reason: "recursive force-delete of filesystem root", mode: ModeDeny},
			{name: "rm-root-wildcard", regex: `(?i)^rm\s+(-[rRfF]+\s+)+/\*`, severity: SeverityCritical, reason: "recursive force-delete of everything under root", mode: ModeDeny},
			{name: "rm-home", regex: `(?i)^rm\s+(-[rRfF]+\s+)+~(\s|/|$)`, severity: SeverityCritical, reason: "recursive force-delete of the home directory", mode: ModeDeny},
			{name: "dd-device-write", regex: `(?i)\bdd\b.*\bof=/dev/`, severity: SeverityCritical, reason: "dd writing directly to a block device", mode: ModeDeny},
			{name: "mkfs", regex: `(?i)^mkfs(\.\w+)?\s`, severity: SeverityCritical, reason: "formats a filesystem, destroying existing data", mode: ModeDeny},
			{name: "fdisk", regex: `(?i)^(fdisk|parted|sfdisk)\s`, severity: SeverityCritical, reason: "partition table manipulation", mode: ModeDeny},
			{name: "chmod-system", regex: `(?i)^chmod\s+.*/(etc|usr|var|boot|bin|sbin)(/|\s|$)`, severity: SeverityHigh, reason: "permission change under a system directory", mode: ModeDeny},
			{name: "chown-system", regex: `(?i)^chown\s+.*/(etc|usr|var|boot|bin|sbin)(/|\s|$)`, severity: SeverityHigh, reason: "ownership change under a system directory", mode: ModeDeny},
			{name: "rm-recursive-force", regex: `(?i)^rm\s+-[a-zA-Z]*[rR][a-zA-Z]*[fF][a-zA-Z]*(\s|$)`, severity: SeverityMedium, reason: "recursive force-delete", mode: ModeDeny},
			{name: "rm-recursive-force-rev", regex: `(?i)^rm\s+-[a-zA-Z]*[fF][a-zA-Z]*[rR][a-zA-Z]*(\s|$)`, severity: SeverityMedium, reason: "recursive force-delete (flags reversed)", mode: ModeDeny},
			{name: "rm-recursive", regex: `(?i)^rm\s+-[a-zA-Z]*[rR][a-zA-Z]*(\s|$)`, severity: SeverityMedium, reason: "recursive delete", mode: ModeDeny},
			{name: "chmod-recursive", regex: `(?i)^chmod\s+-R\s`, severity: SeverityMedium, reason: "recursive permission change", mode: ModeWarn},
			{name: "chown-recursive", regex: `(?i)^chown\s+-R\s`, severity: SeverityMedium, reason: "recursive ownership change", mode: ModeWarn},
			{name: "rm-bare", regex: `(?i)^rm\s+[^-]\S*`, severity: SeverityLow, reason: "file delete", mode: ModeWarn},
			{name: "shred", regex: `(?i)^shred\s`, severity: SeverityHigh, reason: "secure-erase overwrites file contents irrecoverably", mode: ModeDeny},
		},
	},
	{
		id:   "core.interpreter",
		tier: TierCore,
		// No patterns of its own: these keywords exist solely to pass the
		// interpreter invocation through Quick-Reject so the Heredoc /
		// Inline-Code Extractor (spec.md §4.4) gets a chance to recurse
		// into `bash -c '...'`/`python <<EOF` bodies, whose own evaluation
		// produces whatever Deny/Warn is warranted and carries it up
		// (spec.md §8 literal scenario: `bash -c 'git reset --hard'`).
		keywords: []string{"bash", "sh", "zsh", "dash", "ksh", "python", "python3", "node", "perl", "ruby"},
	},
	{
		id:   "core.git",
		tier: TierCore,
		keywords: []string{"git"},
		safe: []specPattern{
			{name: "status", regex: `(?i)^git\s+status\b`, mode: ModeLog},
			{name: "stash-list", regex: `(?i)^git\s+stash\s+list\b`, mode: ModeLog},
			{name: "log", regex: `(?i)^git\s+log\b`, mode: ModeLog},
			{name: "diff", regex: `(?i)^git\s+diff\b`, mode: ModeLog},
			{name: "stash-bare", regex: `(?i)^git\s+stash\s*$`, mode: ModeLog},
		},
		destructive: []specPattern{
			{name: "reset-hard", regex: `(?i)^git\s+reset\s+--hard\b`, severity: SeverityHigh, reason: "discards all uncommitted changes in the working tree", mode: ModeDeny},
			{name: "clean-force", regex: `(?i)^git\s+clean\s+.*-[a-zA-Z]*f[a-zA-Z]*d\b|^git\s+clean\s+.*-[a-zA-Z]*d[a-zA-Z]*f\b`, severity: SeverityHigh, reason: "removes untracked files and directories with no recovery", mode: ModeDeny},
			{name: "push-force", regex: `(?i)^git\s+push\s+.*--force(\s|$)`, severity: SeverityCritical, reason: "force push can overwrite remote history other collaborators depend on", mode: ModeDeny},
			{name: "push-force-short", regex: `(?i)^git\s+push\s+.*(^|\s)-f(\s|$)`, severity: SeverityCritical, reason: "force push (short flag) can overwrite remote history", mode: ModeDeny},
			{name: "push-force-with-lease", regex: `(?i)^git\s+push\s+.*--force-with-lease\b`, severity: SeverityMedium, reason: "force-with-lease is safer but still rewrites remote history", mode: ModeWarn},
			{name: "branch-delete-force", regex: `(?i)^git\s+branch\s+-D\b`, severity: SeverityMedium, reason: "force-deletes a branch even if unmerged", mode: ModeWarn},
			{name: "stash-drop", regex: `(?i)^git\s+stash\s+drop\b`, severity: SeverityLow, reason: "discards a stash entry", mode: ModeWarn},
			{name: "stash-clear", regex: `(?i)^git\s+stash\s+clear\b`, severity: SeverityMedium, reason: "discards every stash entry", mode: ModeWarn},
			{name: "filter-branch", regex: `(?i)^git\s+filter-branch\b`, severity: SeverityHigh, reason: "rewrites repository history", mode: ModeDeny},
		},
	},
	{
		id:   "strict_git.rewrite",
		tier: TierStrictGit,
		keywords: []string{"git"},
		destructive: []specPattern{
			{name: "rebase-interactive", regex: `(?i)^git\s+rebase\s+-i\b`, severity: SeverityLow, reason: "interactive rebase rewrites local commit history", mode: ModeWarn},
			{name: "commit-amend", regex: `(?i)^git\s+commit\s+.*--amend\b`, severity: SeverityLow, reason: "amends the previous commit, rewriting history", mode: ModeWarn},
			{name: "push-tags-force", regex: `(?i)^git\s+push\s+.*--force.*--tags\b`, severity: SeverityHigh, reason: "force push including tags", mode: ModeDeny},
		},
	},
	{
		id:   "system.process",
		tier: TierSystem,
		keywords: []string{"kill", "pkill", "killall", "shutdown", "reboot", "halt", "systemctl", "init"},
		destructive: []specPattern{
			{name: "kill-all", regex: `(?i)^kill(all)?\s+-9\s+-?1(\s|$)`, severity: SeverityCritical, reason: "SIGKILL to every process on the system", mode: ModeDeny},
			{name: "shutdown", regex: `(?i)^(shutdown|halt|poweroff)\b`, severity: SeverityHigh, reason: "shuts down the host", mode: ModeDeny},
			{name: "reboot", regex: `(?i)^reboot\b`, severity: SeverityHigh, reason: "reboots the host", mode: ModeDeny},
			{name: "systemctl-stop-critical", regex: `(?i)^systemctl\s+(stop|disable|mask)\s+(sshd|networking|systemd-.*)\b`, severity: SeverityHigh, reason: "stops a critical system service", mode: ModeDeny},
		},
	},
	{
		id:   "infrastructure.terraform",
		tier: TierInfrastructure,
		keywords: []string{"terraform", "tofu"},
		destructive: []specPattern{
			{name: "destroy-bare", regex: `(?i)^(terraform|tofu)\s+destroy\s*$`, severity: SeverityCritical, reason: "destroys all managed infrastructure with no target", mode: ModeDeny},
			{name: "destroy-auto-approve", regex: `(?i)^(terraform|tofu)\s+destroy\s+.*-auto-approve\b`, severity: SeverityCritical, reason: "destroys infrastructure without a confirmation prompt", mode: ModeDeny},
			{name: "destroy-unflagged", regex: `(?i)^(terraform|tofu)\s+destroy\s+[^-]`, severity: SeverityCritical, reason: "destroys a named resource with no target flag", mode: ModeDeny},
			{name: "destroy-targeted", regex: `(?i)^(terraform|tofu)\s+destroy\s+.*-target\b`, severity: SeverityHigh, reason: "destroys a specific targeted resource", mode: ModeDeny},
			{name: "state-rm", regex: `(?i)^(terraform|tofu)\s+state\s+rm\b`, severity: SeverityHigh, reason: "removes a resource from terraform state without destroying it, risking drift", mode: ModeDeny},
			{name: "apply-auto-approve", regex: `(?i)^(terraform|tofu)\s+apply\s+.*-auto-approve\b`, severity: SeverityMedium, reason: "applies a plan without a confirmation prompt", mode: ModeWarn},
		},
	},
	{
		id:   "cloud.aws",
		tier: TierCloud,
		keywords: []string{"aws"},
		destructive: []specPattern{
			{name: "ec2-terminate", regex: `(?i)^aws\s+ec2\s+terminate-instances\b`, severity: SeverityCritical, reason: "terminates EC2 instances", mode: ModeDeny},
			{name: "s3-rb-force", regex: `(?i)^aws\s+s3\s+rb\s+.*--force\b`, severity: SeverityCritical, reason: "force-deletes an S3 bucket and all objects in it", mode: ModeDeny},
			{name: "rds-delete", regex: `(?i)^aws\s+rds\s+delete-db-instance\b`, severity: SeverityCritical, reason: "deletes an RDS database instance", mode: ModeDeny},
			{name: "iam-delete-user", regex: `(?i)^aws\s+iam\s+delete-user\b`, severity: SeverityHigh, reason: "deletes an IAM user", mode: ModeDeny},
		},
	},
	{
		id:   "cloud.gcp",
		tier: TierCloud,
		keywords: []string{"gcloud"},
		destructive: []specPattern{
			{name: "compute-delete-quiet", regex: `(?i)^gcloud\s+compute\s+instances\s+delete\b.*--quiet\b`, severity: SeverityCritical, reason: "deletes compute instances without confirmation", mode: ModeDeny},
			{name: "project-delete", regex: `(?i)^gcloud\s+projects\s+delete\b`, severity: SeverityCritical, reason: "deletes an entire GCP project", mode: ModeDeny},
			{name: "sql-delete", regex: `(?i)^gcloud\s+sql\s+instances\s+delete\b`, severity: SeverityCritical, reason: "deletes a Cloud SQL instance", mode: ModeDeny},
		},
	},
	{
		id:   "kubernetes.kubectl",
		tier: TierKubernetes,
		keywords: []string{"kubectl"},
		safe: []specPattern{
			{name: "delete-pod", regex: `(?i)^kubectl\s+delete\s+pod\s`, mode: ModeLog},
		},
		destructive: []specPattern{
			{name: "delete-node", regex: `(?i)^kubectl\s+delete\s+(node|nodes)\b`, severity: SeverityCritical, reason: "removes a node from the cluster", mode: ModeDeny},
			{name: "delete-namespace", regex: `(?i)^kubectl\s+delete\s+(namespace|namespaces|ns)\b`, severity: SeverityCritical, reason: "deletes a namespace and every resource inside it", mode: ModeDeny},
			{name: "delete-pv", regex: `(?i)^kubectl\s+delete\s+(pv|persistentvolume|pvc|persistentvolumeclaim)s?\b`, severity: SeverityCritical, reason: "deletes persistent storage", mode: ModeDeny},
			{name: "delete-generic", regex: `(?i)^kubectl\s+delete\b`, severity: SeverityMedium, reason: "deletes a cluster resource", mode: ModeWarn},
			{name: "drain", regex: `(?i)^kubectl\s+drain\b`, severity: SeverityMedium, reason: "evicts all pods from a node", mode: ModeWarn},
		},
	},
	{
		id:   "containers.docker",
		tier: TierContainers,
		keywords: []string{"docker", "podman"},
		destructive: []specPattern{
			{name: "system-prune-all", regex: `(?i)^(docker|podman)\s+system\s+prune\s+.*-a\b`, severity: SeverityHigh, reason: "removes all unused images, containers, networks, and build cache", mode: ModeDeny},
			{name: "rm-force", regex: `(?i)^(docker|podman)\s+rm\s+.*-f\b`, severity: SeverityMedium, reason: "force-removes a running container", mode: ModeWarn},
			{name: "rmi-force", regex: `(?i)^(docker|podman)\s+rmi\s+.*-f\b`, severity: SeverityMedium, reason: "force-removes an image in use", mode: ModeWarn},
			{name: "volume-rm", regex: `(?i)^(docker|podman)\s+volume\s+rm\b`, severity: SeverityMedium, reason: "removes a docker volume and its data", mode: ModeWarn},
			{name: "helm-uninstall-all", regex: `(?i)^helm\s+uninstall\b.*--all\b`, severity: SeverityHigh, reason: "uninstalls every helm release", mode: ModeDeny},
			{name: "helm-uninstall", regex: `(?i)^helm\s+uninstall\b`, severity: SeverityMedium, reason: "uninstalls a helm release", mode: ModeWarn},
		},
	},
	{
		id:   "database.sql",
		tier: TierDatabase,
		keywords: []string{"drop", "truncate", "delete", "psql", "mysql", "mongo"},
		destructive: []specPattern{
			{name: "drop-database", regex: `(?i)\bDROP\s+DATABASE\b`, severity: SeverityCritical, reason: "drops an entire database", mode: ModeDeny},
			{name: "drop-schema", regex: `(?i)\bDROP\s+SCHEMA\b`, severity: SeverityCritical, reason: "drops a database schema", mode: ModeDeny},
			{name: "truncate-table", regex: `(?i)\bTRUNCATE\s+TABLE\b`, severity: SeverityHigh, reason: "removes all rows from a table with no recovery", mode: ModeDeny},
			{name: "drop-table", regex: `(?i)\bDROP\s+TABLE\b`, severity: SeverityHigh, reason: "drops a database table", mode: ModeDeny},
			{name: "delete-no-where", regex: `(?i)\bDELETE\s+FROM\s+[\w."` + "`" + `\[\]]+\s*(;|$|--|/\*)`, severity: SeverityCritical, reason: "deletes every row in a table (no WHERE clause)", mode: ModeDeny},
			{name: "delete-with-where", regex: `(?i)\bDELETE\s+FROM\b.*\bWHERE\b`, severity: SeverityMedium, reason: "deletes matching rows from a table", mode: ModeWarn},
		},
	},
	{
		id:   "package_managers.remove",
		tier: TierPackageManager,
		keywords: []string{"npm", "pip", "pip3", "cargo", "apt", "apt-get", "yum", "brew"},
		destructive: []specPattern{
			{name: "apt-purge", regex: `(?i)^(apt|apt-get)\s+purge\b`, severity: SeverityMedium, reason: "removes a package along with its configuration files", mode: ModeWarn},
			{name: "apt-autoremove", regex: `(?i)^(apt|apt-get)\s+autoremove\b.*-y\b`, severity: SeverityLow, reason: "removes automatically-installed packages no longer needed", mode: ModeWarn},
			{name: "npm-uninstall-global", regex: `(?i)^npm\s+(un|uninstall|remove|rm)\b.*-g\b`, severity: SeverityLow, reason: "removes a globally installed package", mode: ModeWarn},
			{name: "pip-uninstall-y", regex: `(?i)^pip3?\s+uninstall\b.*-y\b`, severity: SeverityLow, reason: "uninstalls a package without confirmation", mode: ModeWarn},
			{name: "cargo-remove", regex: `(?i)^cargo\s+remove\b`, severity: SeverityLow, reason: "removes a crate dependency", mode: ModeWarn},
		},
	},
	{
		id:   "cicd.pipeline",
		tier: TierCICD,
		keywords: []string{"gh", "circleci", "argo"},
		destructive: []specPattern{
			{name: "gh-run-cancel-all", regex: `(?i)^gh\s+run\s+cancel\b`, severity: SeverityLow, reason: "cancels a running CI workflow", mode: ModeWarn},
			{name: "gh-repo-delete", regex: `(?i)^gh\s+repo\s+delete\b`, severity: SeverityCritical, reason: "deletes a GitHub repository", mode: ModeDeny},
			{name: "gh-release-delete", regex: `(?i)^gh\s+release\s+delete\b`, severity: SeverityMedium, reason: "deletes a GitHub release", mode: ModeWarn},
		},
	},
}
