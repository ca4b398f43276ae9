package app

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/SkyAle-bit/Progetto-FE/internal/backend"
	"github.com/SkyAle-bit/Progetto-FE/internal/contract"
	"github.com/SkyAle-bit/Progetto-FE/internal/output"
	"github.com/SkyAle-bit/Progetto-FE/internal/store"
)

type documentList []contract.Document

func (l documentList) PlainLines() []string {
	if len(l) == 0 {
		return []string{"no documents"}
	}
	now := clock()
	out := make([]string, 0, len(l))
	for _, d := range l {
		out = append(out, fmt.Sprintf("%d\t%s\t%s\t%s\t%s", d.ID, d.Type, d.FileName, output.Size(d.SizeBytes), output.Ago(d.UploadedAt, now)))
	}
	return out
}

func newDocumentsCmd(opts *globalOptions) *cobra.Command {
	cmd := &cobra.Command{Use: "documents", Short: "Exchange workout plans, diet plans and certificates"}
	cmd.AddCommand(
		newDocumentsListCmd(opts),
		newDocumentsUploadCmd(opts),
		newDocumentsDownloadCmd(opts),
		newDocumentsDeleteCmd(opts),
	)
	return cmd
}

// documentOwner decides whose documents a command targets. Clients always
// act on their own file; professionals must name the client.
func documentOwner(sess contract.Session, client string) (int64, error) {
	if sess.User.Role == contract.RoleClient {
		if client != "" {
			id, err := parseID("--client", client)
			if err != nil {
				return 0, err
			}
			if id != sess.User.ID {
				return 0, errors.New("clients can only access their own documents")
			}
		}
		return sess.User.ID, nil
	}
	return parseID("--client", client)
}

func newDocumentsListCmd(opts *globalOptions) *cobra.Command {
	var client string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List documents of a client",
		RunE: func(cmd *cobra.Command, _ []string) error {
			p, be, ro, err := buildContext(cmd, opts, "documents.list")
			if err != nil {
				return err
			}
			ctx, cancel := commandContext(ro)
			defer cancel()
			sess, st, err := requireSession(ctx, p, be, ro)
			if err != nil {
				return err
			}
			defer st.Close()
			clientID, err := documentOwner(sess, client)
			if err != nil {
				return failUsage(p, err, "Run `fitctl clients` to find client ids")
			}
			docs, err := callBackend(ctx, "backend.list_documents", func() ([]contract.Document, error) {
				return be.ListDocuments(ctx, clientID)
			})
			if err != nil {
				return failBackend(p, err)
			}
			return successWithMeta(ctx, p, ro, documentList(docs), map[string]any{"count": len(docs), "client_id": clientID}, nil)
		},
	}
	cmd.Flags().StringVar(&client, "client", "", "Client id (required for professionals)")
	return cmd
}

func newDocumentsUploadCmd(opts *globalOptions) *cobra.Command {
	var client, docType, file string
	cmd := &cobra.Command{
		Use:   "upload",
		Short: "Upload a PDF document",
		RunE: func(cmd *cobra.Command, _ []string) error {
			p, be, ro, err := buildContext(cmd, opts, "documents.upload")
			if err != nil {
				return err
			}
			t, err := contract.ParseDocumentType(docType)
			if err != nil {
				return failUsage(p, err, "Use WORKOUT_PLAN, DIET_PLAN, MEDICAL_CERT or INSURANCE_POLICE")
			}
			if strings.TrimSpace(file) == "" {
				return failUsage(p, errors.New("--file is required"), "")
			}
			data, err := os.ReadFile(file)
			if err != nil {
				return failUsage(p, err, "Check the file path")
			}
			name := filepath.Base(file)
			if err := backend.ValidateUpload(name, data); err != nil {
				return failUsage(p, err, "Only PDF files up to 10 MB are accepted")
			}
			ctx, cancel := commandContext(ro)
			defer cancel()
			sess, st, err := requireSession(ctx, p, be, ro)
			if err != nil {
				return err
			}
			defer st.Close()
			clientID, err := documentOwner(sess, client)
			if err != nil {
				return failUsage(p, err, "")
			}
			doc, err := callBackend(ctx, "backend.upload_document", func() (contract.Document, error) {
				return be.UploadDocument(ctx, backend.UploadInput{ClientID: clientID, Type: t, FileName: name, Data: data})
			})
			if err != nil {
				return failBackend(p, err)
			}
			if doc.SizeBytes == 0 {
				doc.SizeBytes = int64(len(data))
			}
			recordActivity(ctx, st, ro, store.Activity{
				Kind:   store.KindDocumentUpload,
				UserID: sess.User.ID,
				Ref:    strconv.FormatInt(doc.ID, 10),
				Detail: fmt.Sprintf("%s %s for client %d", t, name, clientID),
			})
			return successWithMeta(ctx, p, ro, doc, map[string]any{"size": output.Size(doc.SizeBytes)}, nil)
		},
	}
	cmd.Flags().StringVar(&client, "client", "", "Client id (required for professionals)")
	cmd.Flags().StringVar(&docType, "type", "", "WORKOUT_PLAN|DIET_PLAN|MEDICAL_CERT|INSURANCE_POLICE")
	cmd.Flags().StringVar(&file, "file", "", "PDF file to upload")
	return cmd
}

func newDocumentsDownloadCmd(opts *globalOptions) *cobra.Command {
	var client, docType, out string
	cmd := &cobra.Command{
		Use:   "download",
		Short: "Download a client's document of one type",
		RunE: func(cmd *cobra.Command, _ []string) error {
			p, be, ro, err := buildContext(cmd, opts, "documents.download")
			if err != nil {
				return err
			}
			t, err := contract.ParseDocumentType(docType)
			if err != nil {
				return failUsage(p, err, "")
			}
			ctx, cancel := commandContext(ro)
			defer cancel()
			sess, st, err := requireSession(ctx, p, be, ro)
			if err != nil {
				return err
			}
			defer st.Close()
			clientID, err := documentOwner(sess, client)
			if err != nil {
				return failUsage(p, err, "")
			}
			data, err := callBackend(ctx, "backend.download_document", func() ([]byte, error) {
				return be.DownloadDocument(ctx, clientID, t)
			})
			if err != nil {
				return failBackend(p, err)
			}
			if out == "-" {
				_, err := cmd.OutOrStdout().Write(data)
				return err
			}
			if out == "" {
				out = fmt.Sprintf("%s-%d.pdf", strings.ToLower(string(t)), clientID)
			}
			if err := os.WriteFile(out, data, 0o600); err != nil {
				return failWithHint(p, contract.ErrGeneric, err, "Check --out", exitGeneric)
			}
			return successWithMeta(ctx, p, ro, map[string]any{"path": out, "bytes": len(data)}, map[string]any{"size": output.Size(int64(len(data)))}, nil)
		},
	}
	cmd.Flags().StringVar(&client, "client", "", "Client id (required for professionals)")
	cmd.Flags().StringVar(&docType, "type", "", "Document type")
	cmd.Flags().StringVarP(&out, "out", "o", "", "Output path, - for stdout")
	return cmd
}

func newDocumentsDeleteCmd(opts *globalOptions) *cobra.Command {
	var assumeYes bool
	cmd := &cobra.Command{
		Use:   "delete <document-id>",
		Short: "Delete a document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, be, ro, err := buildContext(cmd, opts, "documents.delete")
			if err != nil {
				return err
			}
			id, err := parseID("document id", args[0])
			if err != nil {
				return failUsage(p, err, "")
			}
			ctx, cancel := commandContext(ro)
			defer cancel()
			sess, st, err := requireSession(ctx, p, be, ro)
			if err != nil {
				return err
			}
			defer st.Close()
			confirm := newConfirmer(ro, assumeYes, cmd.InOrStdin(), cmd.ErrOrStderr())
			ok, err := confirm.Confirm(ctx, fmt.Sprintf("Delete document %d?", id))
			if err != nil {
				return failUsage(p, err, "")
			}
			if !ok {
				return p.Success(map[string]any{"id": id, "deleted": false}, nil, nil)
			}
			if err := callBackendErr(ctx, "backend.delete_document", func() error {
				return be.DeleteDocument(ctx, id)
			}); err != nil {
				return failBackend(p, err)
			}
			recordActivity(ctx, st, ro, store.Activity{Kind: store.KindDocumentDeleted, UserID: sess.User.ID, Ref: strconv.FormatInt(id, 10)})
			return successWithMeta(ctx, p, ro, map[string]any{"id": id, "deleted": true}, nil, nil)
		},
	}
	cmd.Flags().BoolVarP(&assumeYes, "yes", "y", false, "Delete without asking")
	return cmd
}
