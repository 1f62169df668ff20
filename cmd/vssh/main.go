// Command vssh is a small SSH/SFTP client: run remote commands and move
// files over the library's own SSH-2 and SFTP-v3 stacks.
package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/splanck/viper/runtime/sftp"
	"github.com/splanck/viper/runtime/ssh"
)

var (
	flagHost     string
	flagPort     int
	flagUser     string
	flagPassword string
	flagKnown    string
	flagVerbose  bool
)

func main() {
	root := &cobra.Command{
		Use:           "vssh",
		Short:         "SSH and SFTP client",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&flagHost, "host", "", "remote host")
	root.PersistentFlags().IntVar(&flagPort, "port", 22, "remote port")
	root.PersistentFlags().StringVar(&flagUser, "user", os.Getenv("USER"), "username")
	root.PersistentFlags().StringVar(&flagPassword, "password", "", "password (empty tries none auth)")
	root.PersistentFlags().StringVar(&flagKnown, "known", defaultKnownPath(), "trusted host key cache")
	root.PersistentFlags().BoolVar(&flagVerbose, "verbose", false, "enable packet-level logging")
	_ = root.MarkPersistentFlagRequired("host")

	root.AddCommand(execCmd(), lsCmd(), getCmd(), putCmd(), rmCmd(), mkdirCmd(), realpathCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "vssh:", err)
		os.Exit(1)
	}
}

func defaultKnownPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "known_hosts.cbor"
	}
	return filepath.Join(home, ".vssh", "known_hosts.cbor")
}

// connect dials, handshakes, and authenticates a session.
func connect() (*ssh.Session, error) {
	cache, err := loadHostKeyCache(flagKnown)
	if err != nil {
		return nil, err
	}

	logger := logrus.New()
	if flagVerbose {
		logger.SetLevel(logrus.DebugLevel)
	} else {
		logger.SetLevel(logrus.WarnLevel)
	}

	addr := fmt.Sprintf("%s:%d", flagHost, flagPort)
	session, err := ssh.Dial(addr, ssh.Config{
		Hostname:        flagHost,
		User:            flagUser,
		HostKeyVerifier: cache.verifier(),
		Logger:          logger,
	})
	if err != nil {
		return nil, err
	}

	if flagPassword != "" {
		err = session.AuthPassword(flagPassword)
	} else {
		err = session.AuthNone()
	}
	if err != nil {
		session.Close()
		return nil, err
	}
	return session, nil
}

// connectSftp opens a session channel and starts the sftp subsystem.
func connectSftp() (*ssh.Session, *sftp.Client, error) {
	session, err := connect()
	if err != nil {
		return nil, nil, err
	}
	channel, err := session.OpenChannel()
	if err != nil {
		session.Close()
		return nil, nil, err
	}
	if err := channel.RequestSubsystem("sftp"); err != nil {
		session.Close()
		return nil, nil, err
	}
	client, err := sftp.NewClient(channel)
	if err != nil {
		session.Close()
		return nil, nil, err
	}
	return session, client, nil
}

func execCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "exec <command>",
		Short: "Run a command remotely",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			session, err := connect()
			if err != nil {
				return err
			}
			defer session.Close()

			channel, err := session.OpenChannel()
			if err != nil {
				return err
			}
			if err := channel.RequestExec(args[0]); err != nil {
				return err
			}
			if _, err := io.Copy(os.Stdout, channel); err != nil {
				return err
			}
			if status, ok := channel.ExitStatus(); ok && status != 0 {
				return fmt.Errorf("remote command exited with status %d", status)
			}
			return nil
		},
	}
}

func lsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ls <path>",
		Short: "List a remote directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			session, client, err := connectSftp()
			if err != nil {
				return err
			}
			defer session.Close()

			dir, err := client.OpenDir(args[0])
			if err != nil {
				return err
			}
			defer dir.Close()
			for {
				entry, err := dir.ReadDir()
				if err == io.EOF {
					return nil
				}
				if err != nil {
					return err
				}
				if entry.Longname != "" {
					fmt.Println(entry.Longname)
				} else {
					fmt.Println(entry.Filename)
				}
			}
		},
	}
}

func getCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <remote> <local>",
		Short: "Download a file",
		Args:  cobra.ExactArgs(2),
		RunE: func(_ *cobra.Command, args []string) error {
			session, client, err := connectSftp()
			if err != nil {
				return err
			}
			defer session.Close()

			remote, err := client.Open(args[0], sftp.FlagRead, nil)
			if err != nil {
				return err
			}
			defer remote.Close()

			local, err := os.Create(args[1])
			if err != nil {
				return err
			}
			defer local.Close()

			buf := make([]byte, 32*1024)
			for {
				n, err := remote.Read(buf)
				if n > 0 {
					if _, werr := local.Write(buf[:n]); werr != nil {
						return werr
					}
				}
				if err == io.EOF {
					return nil
				}
				if err != nil {
					return err
				}
			}
		},
	}
}

func putCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "put <local> <remote>",
		Short: "Upload a file",
		Args:  cobra.ExactArgs(2),
		RunE: func(_ *cobra.Command, args []string) error {
			session, client, err := connectSftp()
			if err != nil {
				return err
			}
			defer session.Close()

			local, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer local.Close()

			remote, err := client.Open(args[1],
				sftp.FlagWrite|sftp.FlagCreate|sftp.FlagTrunc, nil)
			if err != nil {
				return err
			}
			defer remote.Close()

			buf := make([]byte, 32*1024)
			for {
				n, err := local.Read(buf)
				if n > 0 {
					if _, werr := remote.Write(buf[:n]); werr != nil {
						return werr
					}
				}
				if err == io.EOF {
					return nil
				}
				if err != nil {
					return err
				}
			}
		},
	}
}

func rmCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rm <path>",
		Short: "Remove a remote file",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			session, client, err := connectSftp()
			if err != nil {
				return err
			}
			defer session.Close()
			return client.Remove(args[0])
		},
	}
}

func mkdirCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "mkdir <path>",
		Short: "Create a remote directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			session, client, err := connectSftp()
			if err != nil {
				return err
			}
			defer session.Close()
			return client.Mkdir(args[0], 0o755)
		},
	}
}

func realpathCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "realpath <path>",
		Short: "Canonicalise a remote path",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			session, client, err := connectSftp()
			if err != nil {
				return err
			}
			defer session.Close()
			resolved, err := client.Realpath(args[0])
			if err != nil {
				return err
			}
			fmt.Println(resolved)
			return nil
		},
	}
}
